package veto

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var errNoPhrases = errors.New("phrase file contains no phrases")

type phraseFile struct {
	Phrases []string `yaml:"phrases"`
}

// LoadPhrases reads a YAML document of the form `phrases: [...]`.
func LoadPhrases(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phrase file: %w", err)
	}
	var doc phraseFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse phrase file %s: %w", path, err)
	}
	phrases := normalize(doc.Phrases)
	if len(phrases) == 0 {
		return nil, fmt.Errorf("%s: %w", path, errNoPhrases)
	}
	return phrases, nil
}
