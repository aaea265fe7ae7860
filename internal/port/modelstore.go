package port

import "nlu/internal/domain"

// ModelStore persists a serialized intent parser.
type ModelStore interface {
	SaveParser(d domain.ParserDict) error

	LoadParser() (domain.ParserDict, error)

	Close() error
}
