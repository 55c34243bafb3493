package thesis

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/thesis-cli/internal/model"
)

// fileSchema is the on-disk shape of a thesis definition. The wrapper
// keys keep the file readable when theses are kept under version
// control alongside research notes.
type fileSchema struct {
	Thesis       model.Thesis          `yaml:"thesis"`
	Hypotheses   []model.Hypothesis    `yaml:"hypotheses"`
	KillCriteria []model.KillCriterion `yaml:"kill_criteria"`
}

// LoadFile reads a thesis definition from a YAML file and validates
// every piece before it touches the store. The returned input carries
// the ticker from the file itself.
func LoadFile(path string) (string, CreateInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", CreateInput{}, eris.Wrapf(err, "thesis: read file %s", path)
	}

	var doc fileSchema
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", CreateInput{}, eris.Wrapf(err, "thesis: parse file %s", path)
	}

	if doc.Thesis.Ticker == "" {
		return "", CreateInput{}, eris.Wrap(model.ErrValidation, "thesis: file is missing ticker")
	}
	if err := doc.Thesis.Validate(); err != nil {
		return "", CreateInput{}, err
	}
	for i := range doc.Hypotheses {
		if err := doc.Hypotheses[i].Validate(); err != nil {
			return "", CreateInput{}, eris.Wrapf(err, "thesis: hypothesis %d", i+1)
		}
	}
	for i := range doc.KillCriteria {
		if err := doc.KillCriteria[i].Validate(); err != nil {
			return "", CreateInput{}, eris.Wrapf(err, "thesis: kill criterion %d", i+1)
		}
	}

	in := CreateInput{
		Thesis:       doc.Thesis,
		Hypotheses:   doc.Hypotheses,
		KillCriteria: doc.KillCriteria,
	}
	return doc.Thesis.Ticker, in, nil
}
