package indices

import (
	"context"
	"fmt"
	"leica/authority"
	"leica/bizerror"
	"leica/domain"
	"leica/domain/order"
	"leica/event"
	"leica/indices/indexlog"
	"leica/persistence"
	"leica/session"
	"sync"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

var (
	OrderIndexEventHandlerName = "orderIndexer"

	lock    sync.Mutex
	running bool

	IndicesFullSyncFunc         = IndicesFullSync
	ScheduleNewSyncRunFunc      = ScheduleNewSyncRun
	IndexlogRecoveryRoutineFunc = IndexlogRecoveryRoutine

	SyncBatchSize = 500
)

func canSchedule(s *session.Session) bool {
	return s.Roles.HasAny(authority.RoleSystem, authority.RoleProjectManager)
}

// ScheduleNewSyncRun starts a full sync in the background unless one is running.
func ScheduleNewSyncRun(s *session.Session) (bool, error) {
	if !canSchedule(s) {
		return false, bizerror.ErrForbidden
	}

	lock.Lock()
	if running {
		lock.Unlock()
		return false, nil
	}
	running = true
	lock.Unlock()

	fullSync := IndicesFullSyncFunc
	go func() {
		defer func() {
			lock.Lock()
			running = false
			lock.Unlock()
		}()
		if err := fullSync(context.Background()); err != nil {
			logrus.WithError(err).Error("indices full sync aborted")
		}
	}()
	return true, nil
}

// IndicesFullSync rewrites the document of every order. Failed batches are
// logged and skipped.
func IndicesFullSync(ctx context.Context) (err error) {
	defer func() {
		if ret := recover(); ret != nil {
			e, ok := ret.(error)
			if ok {
				err = e
			} else {
				err = fmt.Errorf("error on indices full sync: %v", ret)
			}
		}
	}()

	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	var lastID types.ID
	total := 0
	for {
		orders, err := order.LoadOrders(db, lastID, SyncBatchSize)
		if err != nil {
			return fmt.Errorf("load orders after %d: %w", lastID, err)
		}
		if len(orders) == 0 {
			logrus.WithField("orders", total).Info("indices full sync finished")
			return nil
		}
		if err := IndexOrdersFunc(ctx, orders); err != nil {
			logrus.WithError(err).Warnf("indices full sync: batch after %d partially failed", lastID)
		}
		total += len(orders)
		lastID = orders[len(orders)-1].ID
	}
}

// IndexOrderEventHandle reindexes the order touched by an order or assignment event.
func IndexOrderEventHandle(e *event.EventRecord) *event.EventHandleResult {
	if e.SourceType != domain.KindOrder && e.SourceType != domain.KindAssignment {
		return nil
	}
	ctx := context.Background()
	db := persistence.ActiveDataSourceManager.GormDB(ctx)

	orderID := e.SourceId
	if e.SourceType == domain.KindAssignment {
		a := domain.Assignment{}
		if err := db.Select("order_id").Where("id = ?", e.SourceId).First(&a).Error; err != nil {
			return failed("load assignment %d: %v", e.SourceId, err)
		}
		orderID = a.OrderID
	}

	log, err := indexlog.CreateIndexLogFunc(ctx, domain.KindOrder, orderID)
	if err != nil {
		return failed("create index log of order %d: %v", orderID, err)
	}
	if err := reindex(ctx, db, orderID); err != nil {
		return failed("index order %d: %v", orderID, err)
	}
	if err := indexlog.FinishIndexLogFunc(ctx, log.ID); err != nil {
		return failed("finish index log %d: %v", log.ID, err)
	}
	return &event.EventHandleResult{Success: true, HandlerIdentifier: OrderIndexEventHandlerName,
		Message: "indexed order " + orderID.String()}
}

func reindex(ctx context.Context, db *gorm.DB, orderID types.ID) error {
	o, err := order.LoadOrder(db, orderID)
	if err != nil {
		return err
	}
	return IndexOrdersFunc(ctx, []*domain.Order{o})
}

func failed(format string, args ...interface{}) *event.EventHandleResult {
	return &event.EventHandleResult{Message: fmt.Sprintf(format, args...), HandlerIdentifier: OrderIndexEventHandlerName}
}

// IndexlogRecoveryRoutine retries the pending index logs left by failed writes.
func IndexlogRecoveryRoutine(s *session.Session) error {
	if !canSchedule(s) {
		return bizerror.ErrForbidden
	}
	go func() {
		if err := recoverPendingIndexLogs(context.Background()); err != nil {
			logrus.WithError(err).Error("pending index logs recovery aborted")
		}
	}()
	return nil
}

func recoverPendingIndexLogs(ctx context.Context) error {
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	var lastID types.ID
	for {
		logs, err := indexlog.LoadPendingIndexLogFunc(ctx, lastID, SyncBatchSize)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			return nil
		}
		for _, l := range logs {
			lastID = l.ID
			if err := reindex(ctx, db, l.SourceId); err != nil {
				logrus.WithFields(logrus.Fields{"order": l.SourceId}).WithError(err).Warn("recover index log failed")
				continue
			}
			if err := indexlog.FinishIndexLogFunc(ctx, l.ID); err != nil {
				logrus.WithFields(logrus.Fields{"indexLog": l.ID}).WithError(err).Warn("finish index log failed")
			}
		}
	}
}
