package order

import (
	"leica/authority"
	"leica/bizerror"
	"leica/domain"
	"leica/persistence"
	"leica/session"

	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

var RepairHistoriesFunc = RepairHistories

const repairBatchSize = 200

type RepairReport struct {
	Orders      int `json:"orders"`
	Assignments int `json:"assignments"`
}

// RepairHistories rewrites the state histories whose from/to chain is broken.
// Each repaired document is saved with the usual version check.
func RepairHistories(s *session.Session) (*RepairReport, error) {
	if !s.Roles.HasAny(authority.RoleSystem, authority.RoleProjectManager) {
		return nil, bizerror.ErrForbidden
	}
	db := persistence.ActiveDataSourceManager.GormDB(s.Ctx())
	report := &RepairReport{}

	err := repairBatches(db, func(tx *gorm.DB, offset int) (int, error) {
		orders := []*domain.Order{}
		if err := tx.Order("id ASC").Offset(offset).Limit(repairBatchSize).Find(&orders).Error; err != nil {
			return 0, err
		}
		for _, o := range orders {
			if repaired, changed := o.StateHistory.Repair(); changed {
				o.StateHistory = repaired
				if err := persistence.SaveVersioned(tx, o); err != nil {
					return 0, err
				}
				report.Orders++
				logrus.WithFields(logrus.Fields{"kind": domain.KindOrder, "id": o.ID}).Warn("state history repaired")
			}
		}
		return len(orders), nil
	})
	if err != nil {
		return nil, err
	}

	err = repairBatches(db, func(tx *gorm.DB, offset int) (int, error) {
		assignments := []*domain.Assignment{}
		if err := tx.Order("id ASC").Offset(offset).Limit(repairBatchSize).Find(&assignments).Error; err != nil {
			return 0, err
		}
		for _, a := range assignments {
			if repaired, changed := a.StateHistory.Repair(); changed {
				a.StateHistory = repaired
				if err := persistence.SaveVersioned(tx, a); err != nil {
					return 0, err
				}
				report.Assignments++
				logrus.WithFields(logrus.Fields{"kind": domain.KindAssignment, "id": a.ID}).Warn("state history repaired")
			}
		}
		return len(assignments), nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// repairBatches runs batch in its own transaction until a short page is read.
func repairBatches(db *gorm.DB, batch func(tx *gorm.DB, offset int) (int, error)) error {
	for offset := 0; ; offset += repairBatchSize {
		read := 0
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			read, err = batch(tx, offset)
			return err
		})
		if err != nil {
			return err
		}
		if read < repairBatchSize {
			return nil
		}
	}
}
