package common

import (
	"errors"

	"github.com/fundwit/go-commons/types"
	"github.com/sony/sonyflake"
)

// ErrNoIDWorker is returned when sonyflake cannot derive a machine id, which
// happens on hosts without a private IPv4 address.
var ErrNoIDWorker = errors.New("id worker unavailable: no private IPv4 address, configure a machine id")

var defaultIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

// InitIDWorker replaces the process wide worker. machineID 0 keeps the id
// derived from the private IPv4 address.
func InitIDWorker(machineID uint16) error {
	w := NewIDWorker(machineID)
	if w == nil {
		return ErrNoIDWorker
	}
	defaultIdWorker = w
	return nil
}

// NewIDWorker returns nil when machineID is 0 and no private IPv4 address is found.
func NewIDWorker(machineID uint16) *sonyflake.Sonyflake {
	settings := sonyflake.Settings{}
	if machineID != 0 {
		settings.MachineID = func() (uint16, error) { return machineID, nil }
	}
	return sonyflake.NewSonyflake(settings)
}

func NextId(idWorker *sonyflake.Sonyflake) types.ID {
	if idWorker == nil {
		panic(ErrNoIDWorker)
	}
	id, err := idWorker.NextID()
	if err != nil {
		panic(err)
	}
	return types.ID(id)
}

// NewID draws from the process wide sonyflake worker.
func NewID() types.ID {
	return NextId(defaultIdWorker)
}

type PagedBody struct {
	List  interface{} `json:"list"`
	Total uint64      `json:"total"`
}
