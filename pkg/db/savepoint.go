package db

import (
	"fmt"

	"gorm.io/gorm"
)

// WithSavepoint runs fn inside a named savepoint of tx. When fn fails the
// savepoint is rolled back and the enclosing transaction stays usable; the
// error from fn is returned either way.
func WithSavepoint(tx *gorm.DB, name string, fn func(tx *gorm.DB) error) error {
	if tx == nil {
		return fmt.Errorf("savepoint %s: transaction required", name)
	}
	if err := tx.SavePoint(name).Error; err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.RollbackTo(name).Error; rbErr != nil {
			return fmt.Errorf("rollback to savepoint %s: %w (cause: %v)", name, rbErr, err)
		}
		return err
	}
	return nil
}
