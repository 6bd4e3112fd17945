package services

import "context"

// applyUsage hands a storage delta to the quota counter inside the current
// unit of work. Quotas are not enforced here.
func applyUsage(ctx context.Context, r *repos, ownerID string, delta int64) error {
	if delta == 0 {
		return nil
	}
	return r.users.AdjustStorageUsed(ctx, ownerID, delta)
}
