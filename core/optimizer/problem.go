package optimizer

import (
	"fmt"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// BuildProblem turns a request into an OptimizationProblem. Drivers without
// a truck are left out. The returned map gives the truck paired with each
// driver that was kept.
func (o *Optimizer) BuildProblem(req Request) (model.OptimizationProblem, map[string]model.Truck) {
	maxLoads := o.cfg.MaxLoadsPerDriver
	if req.MaxLoadsPerDriver > 0 {
		maxLoads = req.MaxLoadsPerDriver
	}
	deadhead := o.cfg.MaxDeadheadMiles
	if req.MaxDeadheadMiles > 0 {
		deadhead = req.MaxDeadheadMiles
	}

	trucks := model.PairTrucks(req.Drivers, req.Trucks)
	p := model.OptimizationProblem{
		Type:      req.ProblemType,
		Objective: objective(req),
		Parameters: model.Parameters{
			CostPerMile:           o.cfg.CostPerMile,
			AverageSpeedMPH:       o.cfg.AverageSpeedMPH,
			AllowMultiplePerAgent: req.AllowMultiple,
		},
	}

	for _, l := range req.Loads {
		p.Tasks = append(p.Tasks, model.Task{
			ID:           l.ID,
			Origin:       l.Pickup.Point(),
			Destination:  l.Delivery.Point(),
			Demand:       l.Weight,
			Priority:     l.Priority,
			Window:       l.TimeWindow,
			Requirements: l.SpecialRequirements,
		})
	}

	var drivers []model.Driver
	for _, d := range req.Drivers {
		t, ok := trucks[d.ID]
		if !ok {
			o.logger.Debugf("driver %s has no truck, skipped", d.ID)
			continue
		}
		drivers = append(drivers, d)
		agent := model.Agent{
			ID:       d.ID,
			TruckID:  t.ID,
			Location: d.Location.Point(),
			Capacity: t.Capacity,
			Window:   d.Availability,
			Skills:   d.Certifications,
			MaxTasks: 1,
		}
		if req.AllowMultiple {
			agent.MaxTasks = maxLoads - d.CurrentLoads
		}
		p.Agents = append(p.Agents, agent)
	}

	for _, l := range req.Loads {
		for _, d := range drivers {
			p.Constraints = append(p.Constraints, pairConstraints(l, d, trucks[d.ID], maxLoads, deadhead)...)
			p.Variables = append(p.Variables, model.Variable{
				Name:   fmt.Sprintf("x_%s_%s", l.ID, d.ID),
				Domain: model.DomainBinary,
				Lower:  0,
				Upper:  1,
			})
		}
	}
	return p, trucks
}

func pairConstraints(l model.Load, d model.Driver, t model.Truck, maxLoads int, deadhead float64) []model.Constraint {
	cs := []model.Constraint{
		{
			Type:     model.ConstraintCapacity,
			TaskID:   l.ID,
			AgentID:  d.ID,
			Operator: model.OpLessOrEqual,
			Value:    l.Weight,
			Limit:    t.Capacity,
		},
		{
			Type:     model.ConstraintDriverAvailability,
			TaskID:   l.ID,
			AgentID:  d.ID,
			Operator: model.OpLessOrEqual,
			Value:    float64(d.CurrentLoads),
			Limit:    float64(maxLoads - 1),
		},
		{
			Type:     model.ConstraintTruckCompatibility,
			TaskID:   l.ID,
			AgentID:  d.ID,
			Operator: model.OpLessOrEqual,
			Value:    float64(missing(d.Certifications, l.SpecialRequirements)),
			Limit:    0,
		},
	}
	if l.TimeWindow != nil && !(d.Availability.Start.IsZero() && d.Availability.End.IsZero()) {
		cs = append(cs,
			model.Constraint{
				Type:     model.ConstraintTimeWindow,
				TaskID:   l.ID,
				AgentID:  d.ID,
				Operator: model.OpGreaterOrEqual,
				Value:    float64(l.TimeWindow.Start.Unix()),
				Limit:    float64(d.Availability.Start.Unix()),
			},
			model.Constraint{
				Type:     model.ConstraintTimeWindow,
				TaskID:   l.ID,
				AgentID:  d.ID,
				Operator: model.OpLessOrEqual,
				Value:    float64(l.TimeWindow.End.Unix()),
				Limit:    float64(d.Availability.End.Unix()),
			},
		)
	}
	if deadhead > 0 {
		cs = append(cs, model.Constraint{
			Type:     model.ConstraintLocation,
			TaskID:   l.ID,
			AgentID:  d.ID,
			Operator: model.OpLessOrEqual,
			Value:    model.DistanceMiles(d.Location, l.Pickup),
			Limit:    deadhead,
		})
	}
	return cs
}

func objective(req Request) model.Objective {
	switch req.Target {
	case model.ObjectiveCost, model.ObjectiveDistance, model.ObjectiveTime, model.ObjectiveUtilization:
		return model.Objective{Type: req.Target, Weights: req.Weights}
	}
	w := req.Weights
	if len(w) == 0 {
		w = model.DefaultObjectiveWeights()
	}
	return model.Objective{Type: model.ObjectiveComposite, Weights: w}
}

func missing(certs, reqs []string) int {
	have := make(map[string]struct{}, len(certs))
	for _, c := range certs {
		have[c] = struct{}{}
	}
	n := 0
	for _, r := range reqs {
		if _, ok := have[r]; !ok {
			n++
		}
	}
	return n
}
