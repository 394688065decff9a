package main

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Scenario is a full query described declaratively in YAML; the run
// command takes its path via --scenario (testdata/ holds the fixtures the
// test suite replays).
type Scenario struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	// SQL, if set, is a full "SELECT ... WHERE ..." statement whose WHERE
	// clause is extracted via sqlbridge and used in place of Where.
	SQL string `yaml:"sql"`

	Where   string   `yaml:"where"`
	Columns []string `yaml:"columns"`

	GroupBy string `yaml:"group_by"`

	SortColumns []int `yaml:"sort_columns"`
	Reverse     bool   `yaml:"reverse"`
	Distinct    bool   `yaml:"distinct"`
	DistinctCnt bool   `yaml:"distinct_count"`
	Limit       int64  `yaml:"limit"`

	JoinFile string `yaml:"join_file"`
	JoinType string `yaml:"join_type"` // INNER, LEFT, STRICT LEFT
	JoinOn   string `yaml:"join_on"`   // lhs key expression

	Update      bool     `yaml:"update"`
	UpdateCols  []int    `yaml:"update_columns"`
	UpdateExprs []string `yaml:"update_expressions"`
}

func loadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
