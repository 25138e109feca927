package dto

const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}
