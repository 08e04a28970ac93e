package entity

import "fmt"

// Label метка лунки
type Label string

const (
	LabelClean        Label = "clean"
	LabelContaminated Label = "contaminated"
	LabelUncertain    Label = "uncertain" // оракул не дал однозначного ответа
	LabelError        Label = "error"     // анализ не удался
)

// Class номер класса для классификатора: clean=0, contaminated=1.
func (l Label) Class() (int, error) {
	switch l {
	case LabelClean:
		return 0, nil
	case LabelContaminated:
		return 1, nil
	default:
		return 0, fmt.Errorf("label %q has no class: %w", l, ErrInvalidArgument)
	}
}

// LabelFromClass обратное преобразование к Class.
func LabelFromClass(class int) Label {
	if class == 1 {
		return LabelContaminated
	}
	return LabelClean
}

// Severity степень заражения
type Severity string

const (
	SeverityNone   Severity = ""
	SeverityLight  Severity = "light"
	SeverityMedium Severity = "medium"
	SeverityHeavy  Severity = "heavy"
)

// Severities все уровни заражения по возрастанию.
var Severities = []Severity{SeverityLight, SeverityMedium, SeverityHeavy}
