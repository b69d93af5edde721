package ml

import "errors"

// Evaluation summarises a classifier on a held-out set; class 1 is the positive class.
type Evaluation struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Samples   int     `json:"samples"`
}

func Evaluate(model Classifier, features [][]float64, labels []int) (Evaluation, error) {
	if len(features) != len(labels) {
		return Evaluation{}, errors.New("features and labels size mismatch")
	}
	if len(features) == 0 {
		return Evaluation{}, nil
	}

	var correct int
	var truePositive int
	var predictedPositive int
	var actualPositive int

	for i, row := range features {
		label, err := model.Predict(row)
		if err != nil {
			return Evaluation{}, err
		}
		if label == labels[i] {
			correct++
		}
		if label == 1 {
			predictedPositive++
		}
		if labels[i] == 1 {
			actualPositive++
			if label == 1 {
				truePositive++
			}
		}
	}

	eval := Evaluation{
		Accuracy: float64(correct) / float64(len(features)),
		Samples:  len(features),
	}
	if predictedPositive > 0 {
		eval.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		eval.Recall = float64(truePositive) / float64(actualPositive)
	}
	return eval, nil
}
