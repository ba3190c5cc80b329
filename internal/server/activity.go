package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tasktrail/internal/engine"
)

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity-logs",
		Method:      http.MethodGet,
		Path:        "/activity-logs",
		Summary:     "List activity logs, newest first",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"0" doc:"Maximum entries to return; 0 returns all"`
	}) (*struct {
		Body []ActivityResponse `json:"body"`
	}, error) {
		caller, authErr := callerFrom(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListActivity(ctx, caller, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ActivityResponse `json:"body"`
		}{Body: mapActivity(items)}, nil
	})
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard-summary",
		Method:      http.MethodGet,
		Path:        "/dashboard/summary",
		Summary:     "Project and task counts",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DashboardResponse `json:"body"`
	}, error) {
		caller, authErr := callerFrom(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sum, err := e.Dashboard(ctx, caller)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DashboardResponse `json:"body"`
		}{Body: dashboardResponse(sum)}, nil
	})
}
