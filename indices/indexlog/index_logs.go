package indexlog

import (
	"context"
	"leica/common"
	"leica/persistence"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// IndexLog marks one document that must be (re)written to the search index.
type IndexLog struct {
	SourceType string   `json:"sourceType" gorm:"index:for_search"`
	SourceId   types.ID `json:"sourceId" gorm:"index:for_search"`
}

type IndexLogRecord struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	IndexLog

	Obsolete    bool       `json:"obsolete"`
	Timestamp   time.Time  `json:"timestamp" sql:"type:DATETIME(6)"`
	IndexedTime *time.Time `json:"indexedTime" sql:"type:DATETIME(6)"`
}

func (r *IndexLogRecord) TableName() string {
	return "index_logs"
}

var (
	CreateIndexLogFunc        = CreateIndexLog
	FinishIndexLogFunc        = FinishIndexLog
	IndexLogPersistCreateFunc = indexLogPersistCreate
	LoadPendingIndexLogFunc   = LoadPendingIndexLog

	Clock common.Clock = common.RealClock{}
)

// CreateIndexLog records a pending write, older pending logs of the same source become obsolete.
func CreateIndexLog(ctx context.Context, sourceType string, sourceId types.ID) (*IndexLogRecord, error) {
	record := IndexLogRecord{
		ID:        common.NewID(),
		IndexLog:  IndexLog{SourceType: sourceType, SourceId: sourceId},
		Timestamp: Clock.Now(),
	}
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		return IndexLogPersistCreateFunc(&record, tx)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func FinishIndexLog(ctx context.Context, id types.ID) error {
	changes := map[string]interface{}{"indexed_time": Clock.Now(), "obsolete": false}
	return persistence.ActiveDataSourceManager.GormDB(ctx).Model(&IndexLogRecord{}).Where("id = ?", id).
		Updates(changes).Error
}

// LoadPendingIndexLog pages through the logs never indexed, oldest id first.
func LoadPendingIndexLog(ctx context.Context, afterID types.ID, size int) ([]IndexLogRecord, error) {
	indexLogs := []IndexLogRecord{}
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	if err := db.Where("indexed_time IS NULL AND obsolete = ? AND id > ?", false, afterID).
		Order("id ASC").Limit(size).Find(&indexLogs).Error; err != nil {
		return nil, err
	}
	return indexLogs, nil
}

func indexLogPersistCreate(record *IndexLogRecord, tx *gorm.DB) error {
	if err := tx.Model(&IndexLogRecord{}).Where("source_type = ? AND source_id = ? AND indexed_time IS NULL",
		record.SourceType, record.SourceId).Update("obsolete", true).Error; err != nil {
		return err
	}
	return tx.Create(record).Error
}
