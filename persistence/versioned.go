package persistence

import (
	"leica/bizerror"

	"github.com/jinzhu/gorm"
)

// Versioned entities carry an optimistic lock counter.
type Versioned interface {
	GetVersion() int
	SetVersion(v int)
}

// SaveVersioned inserts e when its version is 0, otherwise bumps the version
// guarded by the value read before and saves e. A concurrent writer that got
// there first makes the guard match no row: ErrConcurrentModification.
func SaveVersioned(tx *gorm.DB, e Versioned) error {
	v := e.GetVersion()
	if v == 0 {
		e.SetVersion(1)
		if err := tx.Create(e).Error; err != nil {
			e.SetVersion(0)
			return err
		}
		return nil
	}

	db := tx.Model(e).Where("version = ?", v).UpdateColumn("version", v+1)
	if db.Error != nil {
		return db.Error
	}
	if db.RowsAffected != 1 {
		return bizerror.ErrConcurrentModification
	}
	e.SetVersion(v + 1)
	if err := tx.Save(e).Error; err != nil {
		e.SetVersion(v)
		return err
	}
	return nil
}
