package tasks

import "stockyard.ai/internal/sim/model"

type Kind string

const (
	KindGather Kind = "GATHER"
	KindBuild  Kind = "BUILD"
	KindHaul   Kind = "HAUL"
	KindCraft  Kind = "CRAFT"
)

var Kinds = []Kind{KindGather, KindBuild, KindHaul, KindCraft}

// Capability is a tag a worker must satisfy to accept a request. Crafting
// requests carry the recipe's job type instead of a fixed tag.
type Capability string

const (
	CapGather Capability = "gather"
	CapBuild  Capability = "build"
	CapHaul   Capability = "haul"
)

// Affinity restricts a request to one team unless Any is set.
type Affinity struct {
	Team model.Team
	Any  bool
}

func ForTeam(t model.Team) Affinity { return Affinity{Team: t} }

func AnyTeam() Affinity { return Affinity{Any: true} }

func (a Affinity) Accepts(t model.Team) bool { return a.Any || a.Team == t }

// Target is the entity a request points at.
type Target interface {
	EntityID() string
	TeamID() model.Team
	Position() model.Vec3i
}

// Request is a queued unit of demand. It is a value; nothing mutates a queued
// request in place.
type Request struct {
	Kind       Kind
	TargetID   string
	Capability Capability
	Affinity   Affinity
	Pos        model.Vec3i
}

func newRequest(k Kind, t Target, c Capability) Request {
	return Request{
		Kind:       k,
		TargetID:   t.EntityID(),
		Capability: c,
		Affinity:   ForTeam(t.TeamID()),
		Pos:        t.Position(),
	}
}

func Gather(node Target) Request { return newRequest(KindGather, node, CapGather) }

func Build(site Target) Request { return newRequest(KindBuild, site, CapBuild) }

func Haul(site Target) Request { return newRequest(KindHaul, site, CapHaul) }

func Craft(building Target, jobType string) Request {
	return newRequest(KindCraft, building, Capability(jobType))
}

func (r Request) WithAffinity(a Affinity) Request {
	r.Affinity = a
	return r
}
