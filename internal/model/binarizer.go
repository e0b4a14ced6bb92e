package model

import "fmt"

// LabelBinarizer decodes multi-label indicator rows back into label text.
// Classes are in the order the indicator columns were fitted.
type LabelBinarizer struct {
	Classes []string
}

// InverseTransform returns, per row, the classes whose indicator is set, in
// class order.
func (b LabelBinarizer) InverseTransform(indicators [][]int) ([][]string, error) {
	out := make([][]string, len(indicators))
	for i, row := range indicators {
		if len(row) != len(b.Classes) {
			return nil, fmt.Errorf("indicator row %d has %d columns, want %d", i, len(row), len(b.Classes))
		}
		labels := []string{}
		for j, on := range row {
			if on != 0 {
				labels = append(labels, b.Classes[j])
			}
		}
		out[i] = labels
	}
	return out, nil
}
