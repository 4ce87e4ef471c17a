package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DukeRupert/hacbridge/internal/domain"
)

const cronJobScript = `def code = %s
def job = cronJobService.getCronJob(code)
cronJobService.performCronJob(job, %t)
modelService.refresh(job)
groovy.json.JsonOutput.toJson([code: job.code, status: String.valueOf(job.status), result: String.valueOf(job.result)])
`

// CronJobStatus is the state of a cron job after it was triggered.
type CronJobStatus struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Result string `json:"result"`
}

// TriggerCronJob starts a cron job by code.
type TriggerCronJob struct {
	console Console
}

func NewTriggerCronJob(console Console) *TriggerCronJob {
	return &TriggerCronJob{console: console}
}

func (t *TriggerCronJob) Name() string { return "trigger_cronjob" }

func (t *TriggerCronJob) Description() string {
	return "Trigger a cron job by code. With synchronous set, waits for the job and reports its result."
}

func (t *TriggerCronJob) Schema() map[string]any {
	return objectSchema([]string{"code"}, map[string]any{
		"code":        stringProp("Cron job code"),
		"synchronous": boolProp("Wait for the job to finish (default false)"),
	})
}

type triggerCronJobArgs struct {
	Code        string `json:"code"`
	Synchronous bool   `json:"synchronous"`
}

func (t *TriggerCronJob) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	const op = "tools.trigger_cronjob"

	var args triggerCronJobArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}
	if err := domain.Validation(op, domain.Require(nil, "code", args.Code)); err != nil {
		return nil, err
	}

	res, err := runScript(ctx, t.console, op, fmt.Sprintf(cronJobScript, groovyString(args.Code), args.Synchronous), true)
	if err != nil {
		return nil, err
	}

	var status CronJobStatus
	if err := decodeScriptJSON(op, res, &status); err != nil {
		return nil, err
	}
	if status.Code == "" {
		return nil, domain.Errorf(domain.EUPSTREAM, op, "cron job %q returned no status", args.Code)
	}
	return status, nil
}
