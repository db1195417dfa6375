package authapi

import (
	"context"
	"encoding/json"
)

// insertAudit appends a row to waybill.audit_log. Audit failures are logged
// and swallowed so they never break the request that produced them.
func (h *Handler) insertAudit(ctx context.Context, action string, userID *string, meta map[string]any) {
	if h.pool == nil {
		return
	}

	var metaJSON []byte
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err == nil {
			metaJSON = b
		}
	}

	const q = `
INSERT INTO waybill.audit_log (action, user_id, meta)
VALUES ($1, $2, $3)
`
	if _, err := h.pool.Exec(ctx, q, action, userID, metaJSON); err != nil {
		h.log.ErrorContext(ctx, "audit.insert_failed", "action", action, "err", err)
	}
}

func (h *Handler) auditLoginOK(ctx context.Context, userID, ip string) {
	h.insertAudit(ctx, "auth.login.ok", &userID, map[string]any{"ip": ip})
}

func (h *Handler) auditLoginFailed(ctx context.Context, email, ip string) {
	h.insertAudit(ctx, "auth.login.failed", nil, map[string]any{"email": email, "ip": ip})
}

func (h *Handler) auditLogout(ctx context.Context, userID string) {
	h.insertAudit(ctx, "auth.logout", &userID, nil)
}

func (h *Handler) auditResetRedeemed(ctx context.Context, userID string, sessionsRemoved int64) {
	h.insertAudit(ctx, "auth.reset.redeemed", &userID, map[string]any{"sessions_removed": sessionsRemoved})
}

func (h *Handler) auditAccessDenied(ctx context.Context, userID, role, resource string) {
	h.insertAudit(ctx, "auth.access.denied", &userID, map[string]any{"role": role, "resource": resource})
}
