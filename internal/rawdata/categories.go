package rawdata

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/spc/internal/model"
)

//go:embed categories.yaml
var defaultCategories []byte

// Classifier maps venue directory classes (OSM fclass) to activity categories.
type Classifier struct {
	byClass map[string]model.Category
}

// LoadClassifier reads a mapping file, or the built-in mapping when path is "".
func LoadClassifier(path string) (*Classifier, error) {
	if path == "" {
		return ParseClassifier(defaultCategories)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rawdata: read category mapping %s", path)
	}
	return ParseClassifier(data)
}

// ParseClassifier parses a YAML document of category name to class list.
// Home cannot be assigned and a class may belong to one category only.
func ParseClassifier(data []byte) (*Classifier, error) {
	var doc map[string][]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "rawdata: parse category mapping")
	}

	c := &Classifier{byClass: make(map[string]model.Category)}
	for name, classes := range doc {
		cat, err := model.ParseCategory(strings.ToLower(name))
		if err != nil {
			return nil, err
		}
		if cat == model.CategoryHome {
			return nil, eris.New("rawdata: venues cannot be classified as home")
		}
		for _, class := range classes {
			key := strings.ToLower(strings.TrimSpace(class))
			if prev, dup := c.byClass[key]; dup && prev != cat {
				return nil, eris.Errorf("rawdata: class %q mapped to both %s and %s", key, prev, cat)
			}
			c.byClass[key] = cat
		}
	}
	return c, nil
}

// Classify returns the category for class, if any.
func (c *Classifier) Classify(class string) (model.Category, bool) {
	cat, ok := c.byClass[strings.ToLower(class)]
	return cat, ok
}

// Len returns the number of mapped classes.
func (c *Classifier) Len() int { return len(c.byClass) }
