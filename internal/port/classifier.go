package port

import "nlu/internal/domain"

// IntentClassifier maps raw text to an intent label.
type IntentClassifier interface {
	Fitted() bool

	// Fit returns a fitted classifier trained on the whole dataset. The
	// receiver is left untouched.
	Fit(dataset domain.Dataset) (IntentClassifier, error)

	GetIntent(text string) (string, error)

	ToDict() (domain.Dict, error)
}
