package entity

// Probabilities вероятности классов
type Probabilities struct {
	Clean        float64 `json:"clean" msgpack:"clean"`
	Contaminated float64 `json:"contaminated" msgpack:"contaminated"`
}

// Prediction результат локального классификатора для одного изображения.
type Prediction struct {
	Label         Label         `json:"label" msgpack:"label"`
	Confidence    float64       `json:"confidence" msgpack:"confidence"`
	Probabilities Probabilities `json:"probabilities" msgpack:"probabilities"`
}

// LocalVerdict результат локального пути анализа лунки.
// При ошибке Label == LabelError, а текст ошибки лежит в Error.
type LocalVerdict struct {
	Label         Label          `json:"label" msgpack:"label"`
	Confidence    float64        `json:"confidence" msgpack:"confidence"`
	Probabilities *Probabilities `json:"probabilities,omitempty" msgpack:"probabilities,omitempty"`
	Error         string         `json:"error,omitempty" msgpack:"error,omitempty"`
}

// NewLocalVerdict превращает предсказание в вердикт.
func NewLocalVerdict(p *Prediction) LocalVerdict {
	probs := p.Probabilities
	return LocalVerdict{
		Label:         p.Label,
		Confidence:    p.Confidence,
		Probabilities: &probs,
	}
}

// LocalError вердикт для неудачного локального анализа.
func LocalError(err error) LocalVerdict {
	return LocalVerdict{Label: LabelError, Error: err.Error()}
}

// OK сообщает, что анализ прошёл без ошибки.
func (v LocalVerdict) OK() bool { return v.Label != LabelError }

// OracleVerdict результат внешнего визуального оракула.
type OracleVerdict struct {
	Label       Label  `json:"label" msgpack:"label"`
	Reasoning   string `json:"reasoning" msgpack:"reasoning"`
	RawResponse string `json:"raw_response,omitempty" msgpack:"raw_response,omitempty"`
	Attempts    int    `json:"attempts" msgpack:"attempts"`
	Error       string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// OK сообщает, что оракул ответил.
func (v OracleVerdict) OK() bool { return v.Label != LabelError }

// WellAnalysis оба независимых вердикта по одной лунке.
// Сведение их в одно решение остаётся за вызывающим кодом.
type WellAnalysis struct {
	Local  LocalVerdict  `json:"rf_prediction" msgpack:"rf_prediction"`
	Oracle OracleVerdict `json:"llm_prediction" msgpack:"llm_prediction"`
}

// ClassMetrics метрики одного класса на тестовой выборке.
type ClassMetrics struct {
	Precision float64 `json:"precision" msgpack:"precision"`
	Recall    float64 `json:"recall" msgpack:"recall"`
	F1        float64 `json:"f1" msgpack:"f1"`
	Support   int     `json:"support" msgpack:"support"`
}

// TrainingReport итог обучения модели.
type TrainingReport struct {
	TrainAccuracy      float64                `json:"train_accuracy" msgpack:"train_accuracy"`
	TestAccuracy       float64                `json:"test_accuracy" msgpack:"test_accuracy"`
	NumSamples         int                    `json:"n_samples" msgpack:"n_samples"`
	NumFeatures        int                    `json:"n_features" msgpack:"n_features"`
	NumClean           int                    `json:"n_clean" msgpack:"n_clean"`
	NumContaminated    int                    `json:"n_contaminated" msgpack:"n_contaminated"`
	NumTrain           int                    `json:"n_train" msgpack:"n_train"`
	NumTest            int                    `json:"n_test" msgpack:"n_test"`
	ConfusionMatrix    [2][2]int              `json:"confusion_matrix" msgpack:"confusion_matrix"`
	Classes            map[Label]ClassMetrics `json:"classes" msgpack:"classes"`
	ModelGeneration    string                 `json:"model_generation" msgpack:"model_generation"`
	FeatureBackendName string                 `json:"feature_backend" msgpack:"feature_backend"`
}
