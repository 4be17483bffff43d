package service

import "context"

// Stats is a snapshot of stored state for the admin API.
type Stats struct {
	Guilds           int64 `json:"guilds"`
	PendingReminders int64 `json:"pending_reminders"`
	RunningGiveaways int64 `json:"running_giveaways"`
	CachedConfigs    int   `json:"cached_configs"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error

	if st.Guilds, err = s.configs.Count(ctx); err != nil {
		return st, err
	}
	if st.PendingReminders, err = s.reminders.Count(ctx); err != nil {
		return st, err
	}
	if st.RunningGiveaways, err = s.giveaways.CountRunning(ctx); err != nil {
		return st, err
	}
	st.CachedConfigs = s.cache.Len()
	return st, nil
}
