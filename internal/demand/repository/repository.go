package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound mapped from gorm.ErrRecordNotFound at the repository boundary.
var ErrNotFound = errors.New("record not found")

// Repositories repository collection
type Repositories struct {
	Demand   *DemandRepository
	Template *TemplateRepository
	Action   *ActionRepository
	User     *UserRepository
}

// NewRepositories creates the repository collection.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Demand:   NewDemandRepository(db),
		Template: NewTemplateRepository(db),
		Action:   NewActionRepository(db),
		User:     NewUserRepository(db),
	}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
