package model

import "time"

// ProblemType identifies the family of optimization problem submitted to a backend.
type ProblemType string

const (
	ProblemVehicleRouting     ProblemType = "vehicle_routing"
	ProblemLoadAssignment     ProblemType = "load_assignment"
	ProblemScheduling         ProblemType = "scheduling"
	ProblemResourceAllocation ProblemType = "resource_allocation"
)

// Valid reports whether t is one of the known problem types.
func (t ProblemType) Valid() bool {
	switch t {
	case ProblemVehicleRouting, ProblemLoadAssignment, ProblemScheduling, ProblemResourceAllocation:
		return true
	}
	return false
}

// ConstraintType classifies a constraint.
type ConstraintType string

const (
	ConstraintCapacity           ConstraintType = "capacity"
	ConstraintTimeWindow         ConstraintType = "time_window"
	ConstraintLocation           ConstraintType = "location"
	ConstraintDriverAvailability ConstraintType = "driver_availability"
	ConstraintTruckCompatibility ConstraintType = "truck_compatibility"
)

// Operator compares a constraint value against its limit.
type Operator string

const (
	OpLessOrEqual    Operator = "lte"
	OpGreaterOrEqual Operator = "gte"
	OpEqual          Operator = "eq"
)

// Constraint restricts the pairing of a task with an agent. An empty AgentID
// applies the constraint to every agent.
type Constraint struct {
	Type     ConstraintType `json:"type"`
	TaskID   string         `json:"task_id"`
	AgentID  string         `json:"agent_id,omitempty"`
	Operator Operator       `json:"operator"`
	Value    float64        `json:"value"`
	Limit    float64        `json:"limit"`
}

// Satisfied evaluates Value <op> Limit.
func (c Constraint) Satisfied() bool {
	switch c.Operator {
	case OpLessOrEqual:
		return c.Value <= c.Limit
	case OpGreaterOrEqual:
		return c.Value >= c.Limit
	case OpEqual:
		return c.Value == c.Limit
	}
	return false
}

// ObjectiveType selects what a solver minimizes.
type ObjectiveType string

const (
	ObjectiveCost        ObjectiveType = "cost"
	ObjectiveDistance    ObjectiveType = "distance"
	ObjectiveTime        ObjectiveType = "time"
	ObjectiveUtilization ObjectiveType = "utilization"
	ObjectiveComposite   ObjectiveType = "composite"
)

// Objective is the single objective of a problem. Weights are keyed by the
// cost/distance/time/utilization objective types.
type Objective struct {
	Type    ObjectiveType             `json:"type"`
	Weights map[ObjectiveType]float64 `json:"weights,omitempty"`
}

// DefaultObjectiveWeights is the composite weighting used when the caller does
// not choose a target.
func DefaultObjectiveWeights() map[ObjectiveType]float64 {
	return map[ObjectiveType]float64{
		ObjectiveCost:        0.4,
		ObjectiveDistance:    0.3,
		ObjectiveTime:        0.2,
		ObjectiveUtilization: 0.1,
	}
}

// ResolvedWeights returns the weights the cost model should apply. A single
// target objective puts all weight on itself.
func (o Objective) ResolvedWeights() map[ObjectiveType]float64 {
	switch o.Type {
	case ObjectiveCost, ObjectiveDistance, ObjectiveTime, ObjectiveUtilization:
		if len(o.Weights) == 0 {
			return map[ObjectiveType]float64{o.Type: 1}
		}
	}
	if len(o.Weights) == 0 {
		return DefaultObjectiveWeights()
	}
	out := make(map[ObjectiveType]float64, len(o.Weights))
	for k, v := range o.Weights {
		out[k] = v
	}
	return out
}

// VariableDomain is the numeric domain of a decision variable.
type VariableDomain string

const (
	DomainBinary     VariableDomain = "binary"
	DomainInteger    VariableDomain = "integer"
	DomainContinuous VariableDomain = "continuous"
)

// Variable describes one decision variable of the problem.
type Variable struct {
	Name   string         `json:"name"`
	Domain VariableDomain `json:"domain"`
	Lower  float64        `json:"lower"`
	Upper  float64        `json:"upper"`
}

// Point is a coordinate pair used by the abstract model.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Task is the abstract unit of work (a load).
type Task struct {
	ID           string      `json:"id"`
	Origin       Point       `json:"origin"`
	Destination  Point       `json:"destination"`
	Demand       float64     `json:"demand"`
	Priority     int         `json:"priority"`
	Window       *TimeWindow `json:"window,omitempty"`
	Requirements []string    `json:"requirements,omitempty"`
}

// Agent is the abstract resource able to carry tasks (a driver with a truck).
type Agent struct {
	ID       string     `json:"id"`
	TruckID  string     `json:"truck_id,omitempty"`
	Location Point      `json:"location"`
	Capacity float64    `json:"capacity"`
	Window   TimeWindow `json:"window"`
	Skills   []string   `json:"skills,omitempty"`
	MaxTasks int        `json:"max_tasks"`
}

// Parameters tune the cost model shared by all solvers.
type Parameters struct {
	CostPerMile           float64 `json:"cost_per_mile"`
	AverageSpeedMPH       float64 `json:"average_speed_mph"`
	AllowMultiplePerAgent bool    `json:"allow_multiple_per_agent"`
}

// OptimizationProblem is the backend-independent request. It is treated as
// read-only for the duration of a solve call.
type OptimizationProblem struct {
	Type        ProblemType  `json:"type"`
	Constraints []Constraint `json:"constraints"`
	Objective   Objective    `json:"objective"`
	Variables   []Variable   `json:"variables"`
	Tasks       []Task       `json:"tasks"`
	Agents      []Agent      `json:"agents"`
	Parameters  Parameters   `json:"parameters"`
}

// Size is the number of candidate task/agent pairs.
func (p OptimizationProblem) Size() int {
	return len(p.Tasks) * len(p.Agents)
}

// Assignment pairs a load with a driver and truck.
type Assignment struct {
	LoadID        string        `json:"load_id"`
	DriverID      string        `json:"driver_id"`
	TruckID       string        `json:"truck_id,omitempty"`
	Route         []Point       `json:"route,omitempty"`
	EstimatedCost float64       `json:"estimated_cost"`
	EstimatedTime time.Duration `json:"estimated_time"`
}

// Termination explains why a search loop stopped.
type Termination string

const (
	TerminationCompleted        Termination = "completed"
	TerminationTemperatureFloor Termination = "temperature_floor"
	TerminationDeadline         Termination = "deadline"
	TerminationCancelled        Termination = "cancelled"
)

// SolutionMetadata identifies who produced a solution and how.
type SolutionMetadata struct {
	Solver           string        `json:"solver"`
	Backend          string        `json:"backend"`
	RequestedBackend string        `json:"requested_backend,omitempty"`
	FallbackUsed     bool          `json:"fallback_used"`
	Emulated         bool          `json:"emulated,omitempty"`
	ExecutionTime    time.Duration `json:"execution_time"`
	Iterations       int           `json:"iterations"`
	Confidence       float64       `json:"confidence,omitempty"`
	Termination      Termination   `json:"termination,omitempty"`
}

// OptimizationSolution is the result of a solve call.
type OptimizationSolution struct {
	Assignments []Assignment     `json:"assignments"`
	Cost        float64          `json:"cost"`
	Metadata    SolutionMetadata `json:"metadata"`
}
