// Package control carries parameter and lifecycle commands from input
// sources to the host loop: an in-process queue, an updater facade and a
// net/rpc service for remote clients.
package control

import "fmt"

// Kind identifies a command.
type Kind uint8

const (
	KindSetDiffusionA Kind = iota + 1
	KindSetDiffusionB
	KindSetFeed
	KindSetKill
	KindSetTimestep
	KindSetStepsPerFrame
	KindReset
	KindStart
	KindPause
)

var kindNames = map[Kind]string{
	KindSetDiffusionA:    "set-diffusion-a",
	KindSetDiffusionB:    "set-diffusion-b",
	KindSetFeed:          "set-feed",
	KindSetKill:          "set-kill",
	KindSetTimestep:      "set-timestep",
	KindSetStepsPerFrame: "set-steps-per-frame",
	KindReset:            "reset",
	KindStart:            "start",
	KindPause:            "pause",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Command is one control message. Value carries the float payload of the
// parameter setters and Steps the payload of SetStepsPerFrame.
type Command struct {
	Kind  Kind
	Value float32
	Steps uint32
}

func SetDiffusionA(v float32) Command { return Command{Kind: KindSetDiffusionA, Value: v} }
func SetDiffusionB(v float32) Command { return Command{Kind: KindSetDiffusionB, Value: v} }
func SetFeed(v float32) Command       { return Command{Kind: KindSetFeed, Value: v} }
func SetKill(v float32) Command       { return Command{Kind: KindSetKill, Value: v} }
func SetTimestep(v float32) Command   { return Command{Kind: KindSetTimestep, Value: v} }
func Reset() Command                  { return Command{Kind: KindReset} }
func Start() Command                  { return Command{Kind: KindStart} }
func Pause() Command                  { return Command{Kind: KindPause} }

// SetStepsPerFrame changes how many steps the host issues per frame.
func SetStepsPerFrame(n uint32) Command {
	return Command{Kind: KindSetStepsPerFrame, Steps: n}
}

// Validate rejects commands the host cannot apply.
func (c Command) Validate() error {
	if _, ok := kindNames[c.Kind]; !ok {
		return fmt.Errorf("unknown command %v", c.Kind)
	}
	if c.Kind == KindSetStepsPerFrame && c.Steps == 0 {
		return fmt.Errorf("%v: steps per frame must be positive", c.Kind)
	}
	return nil
}

func (c Command) String() string {
	switch c.Kind {
	case KindSetStepsPerFrame:
		return fmt.Sprintf("%v(%d)", c.Kind, c.Steps)
	case KindReset, KindStart, KindPause:
		return c.Kind.String()
	default:
		return fmt.Sprintf("%v(%g)", c.Kind, c.Value)
	}
}

// Parse builds a command from a name as printed by Kind.String and an
// optional textual argument.
func Parse(name, arg string) (Command, error) {
	for k, n := range kindNames {
		if n != name {
			continue
		}
		switch k {
		case KindReset, KindStart, KindPause:
			return Command{Kind: k}, nil
		case KindSetStepsPerFrame:
			var steps uint32
			if _, err := fmt.Sscan(arg, &steps); err != nil {
				return Command{}, fmt.Errorf("%s: parsing %q: %w", name, arg, err)
			}
			c := SetStepsPerFrame(steps)
			return c, c.Validate()
		default:
			var v float32
			if _, err := fmt.Sscan(arg, &v); err != nil {
				return Command{}, fmt.Errorf("%s: parsing %q: %w", name, arg, err)
			}
			return Command{Kind: k, Value: v}, nil
		}
	}
	return Command{}, fmt.Errorf("unknown command %q", name)
}
