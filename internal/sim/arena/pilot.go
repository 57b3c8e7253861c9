package arena

// Pilot decides where a snake wants to go. Players, bots and remote clients plug in here.
// Decide must not mutate the arena.
type Pilot interface {
	Decide(self *Snake, a *Arena, dt float64) (heading Vec3, boost bool)
}

// PilotFunc adapts a plain function to Pilot.
type PilotFunc func(self *Snake, a *Arena, dt float64) (Vec3, bool)

func (f PilotFunc) Decide(self *Snake, a *Arena, dt float64) (Vec3, bool) {
	return f(self, a, dt)
}

// Straight keeps the current heading without boosting. Remote snakes are
// dead-reckoned with it between client updates.
var Straight Pilot = PilotFunc(func(self *Snake, _ *Arena, _ float64) (Vec3, bool) {
	return self.Heading, false
})
