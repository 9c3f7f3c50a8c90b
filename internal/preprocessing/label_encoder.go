package preprocessing

import (
	"fmt"
)

// DefaultTargetClass is the Class value treated as the positive label.
const DefaultTargetClass = "Blue Tarp"

// Label is the binary classification target derived from a sample's Class.
type Label int

const (
	NonBlueTarp Label = 0
	BlueTarp    Label = 1
)

func (l Label) String() string {
	switch l {
	case BlueTarp:
		return "BlueTarp"
	case NonBlueTarp:
		return "NonBlueTarp"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// BinaryLabeler collapses a multi-valued class column into BlueTarp or NonBlueTarp.
type BinaryLabeler struct {
	Target string
}

func NewBinaryLabeler(target string) *BinaryLabeler {
	if target == "" {
		target = DefaultTargetClass
	}
	return &BinaryLabeler{Target: target}
}

func (bl *BinaryLabeler) Label(class string) Label {
	if class == bl.Target {
		return BlueTarp
	}
	return NonBlueTarp
}

// Transform labels every row; nothing is dropped.
func (bl *BinaryLabeler) Transform(classes []string) []int {
	result := make([]int, len(classes))
	for i, class := range classes {
		result[i] = int(bl.Label(class))
	}
	return result
}

func (bl *BinaryLabeler) InverseTransform(encoded []int) ([]string, error) {
	result := make([]string, len(encoded))
	for i, val := range encoded {
		switch Label(val) {
		case BlueTarp, NonBlueTarp:
			result[i] = Label(val).String()
		default:
			return nil, fmt.Errorf("unknown encoding: %d", val)
		}
	}
	return result, nil
}

// Counts returns the number of BlueTarp and NonBlueTarp entries in y.
func Counts(y []int) (positive, negative int) {
	for _, label := range y {
		if Label(label) == BlueTarp {
			positive++
		} else {
			negative++
		}
	}
	return positive, negative
}
