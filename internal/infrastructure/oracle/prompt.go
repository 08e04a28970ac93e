package oracle

// Prompt запрос к визуальному оракулу
const Prompt = `Analyze this bacterial culture well image from a microscope.

Determine if the culture is:
- CLEAN: Pure, healthy bacterial culture with uniform morphology
- CONTAMINATED: Mixed species, abnormal morphology, or contamination visible

Respond in this format:
Judgment: [clean or contaminated]
Reasoning: [1-2 sentences explaining why]`
