package jobs

import (
	"context"
	"leica/config"

	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StartCron schedules the batch jobs, extra registers more entries on the same
// crontab. The caller stops the returned cron on shutdown.
func StartCron(jobs config.JobsConfig, workflow config.WorkflowConfig, extra map[string]func()) (*cron.Cron, error) {
	logger := cronLogger{entry: logrus.WithField("component", "cron")}
	crontab := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	entries := map[string]func(){
		jobs.ReadyForUploadCron: func() {
			report, err := ReadyForUploadFunc(context.Background())
			logReport(report, err)
		},
		jobs.AutoAcceptCron: func() {
			report, err := AutoAcceptFunc(context.Background(), workflow.DeliveryAcceptDays)
			logReport(report, err)
		},
	}
	for spec, job := range extra {
		if _, exists := entries[spec]; exists {
			prev := entries[spec]
			next := job
			job = func() { prev(); next() }
		}
		entries[spec] = job
	}

	for spec, job := range entries {
		if spec == "" {
			continue
		}
		if _, err := crontab.AddFunc(spec, job); err != nil {
			return nil, err
		}
	}
	crontab.Start()
	return crontab, nil
}

func logReport(report *Report, err error) {
	if report == nil {
		return
	}
	entry := logrus.WithFields(logrus.Fields{"job": report.Job, "fired": report.Fired, "failed": report.Failed})
	if err != nil {
		entry.WithError(err).Error("job aborted")
		return
	}
	entry.Info("job finished")
}

// cronLogger routes cron logs through logrus.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(pairs(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(pairs(keysAndValues)).WithError(err).Error(msg)
}

func pairs(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}
