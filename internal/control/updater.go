package control

import "context"

// Updater exposes one method per command over any Sender, so keyboard
// handlers and remote clients share the same vocabulary.
type Updater struct {
	s Sender
}

func NewUpdater(s Sender) *Updater {
	return &Updater{s: s}
}

func (u *Updater) SetDiffusionA(ctx context.Context, v float32) error {
	return u.s.Send(ctx, SetDiffusionA(v))
}

func (u *Updater) SetDiffusionB(ctx context.Context, v float32) error {
	return u.s.Send(ctx, SetDiffusionB(v))
}

func (u *Updater) SetFeed(ctx context.Context, v float32) error {
	return u.s.Send(ctx, SetFeed(v))
}

func (u *Updater) SetKill(ctx context.Context, v float32) error {
	return u.s.Send(ctx, SetKill(v))
}

func (u *Updater) SetTimestep(ctx context.Context, v float32) error {
	return u.s.Send(ctx, SetTimestep(v))
}

func (u *Updater) SetStepsPerFrame(ctx context.Context, n uint32) error {
	return u.s.Send(ctx, SetStepsPerFrame(n))
}

func (u *Updater) Reset(ctx context.Context) error { return u.s.Send(ctx, Reset()) }
func (u *Updater) Start(ctx context.Context) error { return u.s.Send(ctx, Start()) }
func (u *Updater) Pause(ctx context.Context) error { return u.s.Send(ctx, Pause()) }
