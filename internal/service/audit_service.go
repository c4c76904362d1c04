package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/repository"
)

type AuditLogResponse struct {
	ID          string `json:"id"`
	OfficerID   string `json:"officer_id,omitempty"`
	OfficerName string `json:"officer_name,omitempty"`
	Action      string `json:"action"`
	EntityID    string `json:"entity_id"`
	EntityName  string `json:"entity_name,omitempty"`
	Details     string `json:"details"`
	CreatedAt   string `json:"created_at"`
}

type AuditService interface {
	List(ctx context.Context, action string, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	audits repository.AuditRepository
}

func NewAuditService(audits repository.AuditRepository) AuditService {
	return &auditService{audits: audits}
}

func (s *auditService) List(ctx context.Context, action string, page, limit int) ([]AuditLogResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	logs, total, err := s.audits.List(ctx, action, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	result := make([]AuditLogResponse, 0, len(logs))
	for _, entry := range logs {
		resp := AuditLogResponse{
			ID:         entry.ID.String(),
			Action:     entry.Action,
			EntityID:   entry.EntityID,
			EntityName: entry.EntityName,
			Details:    entry.Details,
			CreatedAt:  entry.CreatedAt.Format(time.RFC3339),
		}
		if entry.OfficerID != nil {
			resp.OfficerID = entry.OfficerID.String()
		}
		if entry.Officer != nil {
			resp.OfficerName = entry.Officer.Name
		}
		result = append(result, resp)
	}
	return result, total, nil
}
