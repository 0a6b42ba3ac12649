package models

import "fmt"

type ExperienceLevel string

const (
	Junior   ExperienceLevel = "junior"
	MidLevel ExperienceLevel = "mid-level"
	Senior   ExperienceLevel = "senior"
)

var ExperienceLevels = []ExperienceLevel{Junior, MidLevel, Senior}

func ParseExperienceLevel(s string) (ExperienceLevel, error) {
	l := ExperienceLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("invalid experience level %q", s)
	}
	return l, nil
}

func (l ExperienceLevel) Valid() bool {
	switch l {
	case Junior, MidLevel, Senior:
		return true
	}
	return false
}

// Label is the human readable form used in prompts and responses.
func (l ExperienceLevel) Label() string {
	switch l {
	case Junior:
		return "Junior"
	case MidLevel:
		return "Mid-Level"
	case Senior:
		return "Senior"
	}
	return string(l)
}

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

var Difficulties = []Difficulty{Easy, Medium, Hard}

func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if !d.Valid() {
		return "", fmt.Errorf("invalid difficulty %q", s)
	}
	return d, nil
}

func (d Difficulty) Valid() bool {
	switch d {
	case Easy, Medium, Hard:
		return true
	}
	return false
}

func (d Difficulty) Label() string {
	switch d {
	case Easy:
		return "Easy"
	case Medium:
		return "Medium"
	case Hard:
		return "Hard"
	}
	return string(d)
}
