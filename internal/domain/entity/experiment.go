package entity

import (
	"fmt"
	"time"
)

// Scenario сценарий заражения синтетического эксперимента
type Scenario int

const (
	ScenarioClean Scenario = iota
	ScenarioGradual
	ScenarioSudden
	ScenarioRandom
)

var scenarioNames = map[Scenario]string{
	ScenarioClean:   "clean",
	ScenarioGradual: "gradual",
	ScenarioSudden:  "sudden",
	ScenarioRandom:  "random",
}

// ParseScenario разбирает строковый тег сценария.
func ParseScenario(tag string) (Scenario, error) {
	for s, name := range scenarioNames {
		if name == tag {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown contamination scenario %q: %w", tag, ErrInvalidArgument)
}

func (s Scenario) String() string {
	if name, ok := scenarioNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Scenario(%d)", int(s))
}

func (s Scenario) MarshalText() ([]byte, error) {
	if _, ok := scenarioNames[s]; !ok {
		return nil, fmt.Errorf("unknown scenario %d: %w", int(s), ErrInvalidArgument)
	}
	return []byte(s.String()), nil
}

func (s *Scenario) UnmarshalText(text []byte) error {
	parsed, err := ParseScenario(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ExperimentStatus статус эксперимента
type ExperimentStatus string

// StatusCompleted все точки посчитаны при создании.
const StatusCompleted ExperimentStatus = "completed"

// Well лунка в конкретный момент времени
type Well struct {
	ID        string   `json:"well_id"`
	ImagePath string   `json:"image_path"`
	TrueLabel Label    `json:"true_label"`
	Severity  Severity `json:"severity,omitempty"`
}

// Timepoint снимок планшета в момент времени
type Timepoint struct {
	Index int    `json:"index"`
	Time  int    `json:"time"` // секунды от начала
	Wells []Well `json:"wells"`
}

// Experiment синтетический эксперимент. После создания не меняется.
type Experiment struct {
	ID              string           `json:"experiment_id"`
	Status          ExperimentStatus `json:"status"`
	NumTimepoints   int              `json:"num_timepoints"`
	IntervalSeconds int              `json:"interval_seconds"`
	Scenario        Scenario         `json:"contamination_scenario"`
	CreatedAt       time.Time        `json:"created_at"`
	Timepoints      []Timepoint      `json:"timepoints"`
}

// Well ищет лунку по времени и идентификатору.
func (e *Experiment) Well(timeSeconds int, wellID string) (Well, bool) {
	for _, tp := range e.Timepoints {
		if tp.Time != timeSeconds {
			continue
		}
		for _, w := range tp.Wells {
			if w.ID == wellID {
				return w, true
			}
		}
	}
	return Well{}, false
}

// Contaminated возвращает индексы точек, где лунка заражена.
func (e *Experiment) Contaminated(wellID string) []int {
	var idx []int
	for _, tp := range e.Timepoints {
		for _, w := range tp.Wells {
			if w.ID == wellID && w.TrueLabel == LabelContaminated {
				idx = append(idx, tp.Index)
			}
		}
	}
	return idx
}

// WellResult лунка с вердиктами обоих анализаторов.
type WellResult struct {
	ID        string        `json:"well_id" msgpack:"well_id"`
	ImagePath string        `json:"image_path" msgpack:"image_path"`
	TrueLabel Label         `json:"true_label" msgpack:"true_label"`
	Local     LocalVerdict  `json:"rf_prediction" msgpack:"rf_prediction"`
	Oracle    OracleVerdict `json:"llm_prediction" msgpack:"llm_prediction"`
}

// TimepointResult точка с результатами анализа
type TimepointResult struct {
	Time  int          `json:"time" msgpack:"time"`
	Wells []WellResult `json:"wells" msgpack:"wells"`
}

// ExperimentResult эксперимент с результатами анализа всех лунок.
type ExperimentResult struct {
	ID              string            `json:"experiment_id" msgpack:"experiment_id"`
	Status          ExperimentStatus  `json:"status" msgpack:"status"`
	NumTimepoints   int               `json:"num_timepoints" msgpack:"num_timepoints"`
	IntervalSeconds int               `json:"interval_seconds" msgpack:"interval_seconds"`
	Scenario        string            `json:"contamination_scenario" msgpack:"contamination_scenario"`
	Timepoints      []TimepointResult `json:"timepoints" msgpack:"timepoints"`
}

// Failures считает лунки, где хотя бы один путь анализа вернул ошибку.
func (r *ExperimentResult) Failures() int {
	n := 0
	for _, tp := range r.Timepoints {
		for _, w := range tp.Wells {
			if !w.Local.OK() || !w.Oracle.OK() {
				n++
			}
		}
	}
	return n
}
