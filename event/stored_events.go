package event

import (
	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	EventPersistCreateFunc         = eventPersistCreate
	EventPersistCreateFuncOriginal = eventPersistCreate
	QueryEventsFunc                = QueryEvents
)

func eventPersistCreate(record *EventRecord, db *gorm.DB) error {
	return db.Create(record).Error
}

// QueryEvents lists the events of one entity, oldest first.
func QueryEvents(sourceType string, sourceId types.ID, db *gorm.DB) ([]EventRecord, error) {
	records := []EventRecord{}
	err := db.Where("source_type = ? AND source_id = ?", sourceType, sourceId).
		Order("timestamp ASC, id ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
