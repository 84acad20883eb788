package solver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testProblem(t model.ProblemType) model.OptimizationProblem {
	return model.OptimizationProblem{
		Type:      t,
		Objective: model.Objective{Type: model.ObjectiveComposite},
		Tasks: []model.Task{
			{ID: "L1", Origin: model.Point{Lat: 32.78, Lng: -96.80}, Destination: model.Point{Lat: 32.90, Lng: -96.90}, Demand: 1000, Priority: 9},
			{ID: "L2", Origin: model.Point{Lat: 29.76, Lng: -95.37}, Destination: model.Point{Lat: 29.90, Lng: -95.50}, Demand: 2000, Priority: 5},
			{ID: "L3", Origin: model.Point{Lat: 30.27, Lng: -97.74}, Destination: model.Point{Lat: 30.40, Lng: -97.80}, Demand: 1500, Priority: 3},
		},
		Agents: []model.Agent{
			{ID: "D1", TruckID: "T1", Location: model.Point{Lat: 32.77, Lng: -96.79}, Capacity: 40000},
			{ID: "D2", TruckID: "T2", Location: model.Point{Lat: 29.75, Lng: -95.36}, Capacity: 40000},
			{ID: "D3", TruckID: "T3", Location: model.Point{Lat: 30.26, Lng: -97.73}, Capacity: 40000},
		},
	}
}

// trapProblem makes priority-ordered greedy leave L2 open: L1 slightly prefers
// A, but L2 can only be carried by A.
func trapProblem() model.OptimizationProblem {
	p := model.OptimizationProblem{
		Type:      model.ProblemLoadAssignment,
		Objective: model.Objective{Type: model.ObjectiveDistance},
		Tasks: []model.Task{
			{ID: "L1", Origin: model.Point{Lat: 35.0, Lng: -90.0}, Destination: model.Point{Lat: 35.1, Lng: -90.0}, Priority: 5},
			{ID: "L2", Origin: model.Point{Lat: 35.0, Lng: -90.2}, Destination: model.Point{Lat: 35.1, Lng: -90.2}, Priority: 1},
		},
		Agents: []model.Agent{
			{ID: "A", Location: model.Point{Lat: 35.0, Lng: -90.01}},
			{ID: "B", Location: model.Point{Lat: 35.0, Lng: -90.05}},
		},
		Constraints: []model.Constraint{
			{Type: model.ConstraintTruckCompatibility, TaskID: "L2", AgentID: "B", Operator: model.OpLessOrEqual, Value: 1, Limit: 0},
		},
	}
	return p
}

func assertAssignmentInvariant(t *testing.T, sol model.OptimizationSolution, multi bool) {
	t.Helper()
	loads := map[string]bool{}
	drivers := map[string]bool{}
	for _, a := range sol.Assignments {
		assert.False(t, loads[a.LoadID], "load %s assigned twice", a.LoadID)
		loads[a.LoadID] = true
		if !multi {
			assert.False(t, drivers[a.DriverID], "driver %s assigned twice", a.DriverID)
		}
		drivers[a.DriverID] = true
		assert.GreaterOrEqual(t, a.EstimatedCost, 0.0)
		assert.GreaterOrEqual(t, a.EstimatedTime, time.Duration(0))
	}
}

func TestEvaluatorGreedyAndRepair(t *testing.T) {
	ev := newEvaluator(testProblem(model.ProblemLoadAssignment))
	g := ev.greedy()
	assert.Equal(t, []int{0, 1, 2}, g)

	dup := []int{0, 0, 0}
	ev.repair(dup)
	assert.Equal(t, []int{0, -1, -1}, dup)
	assert.Equal(t, 1, ev.assigned(dup))
	assert.Greater(t, ev.cost(dup), ev.cost(g))
}

func TestEvaluatorConstraintWithoutAgentBlocksTask(t *testing.T) {
	p := testProblem(model.ProblemLoadAssignment)
	p.Constraints = []model.Constraint{
		{Type: model.ConstraintCapacity, TaskID: "L1", Operator: model.OpLessOrEqual, Value: 50000, Limit: 40000},
	}
	ev := newEvaluator(p)
	assert.Empty(t, ev.candidates[0])
	assert.Len(t, ev.candidates[1], 3)
	assert.Equal(t, -1, ev.greedy()[0])
}

func TestAnnealingDeterministicWithSeed(t *testing.T) {
	cfg := DefaultAnnealingConfig()
	cfg.Seed = 42
	p := testProblem(model.ProblemLoadAssignment)

	s1, err := NewAnnealingSolver(cfg).Solve(context.Background(), p)
	require.NoError(t, err)
	s2, err := NewAnnealingSolver(cfg).Solve(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, s1.Assignments, s2.Assignments)
	assert.Equal(t, s1.Cost, s2.Cost)
	assert.Len(t, s1.Assignments, 3)
	assert.InDelta(t, 0.95, s1.Metadata.Confidence, 1e-9)
	assert.Equal(t, "annealing", s1.Metadata.Solver)
	assertAssignmentInvariant(t, s1, false)
}

func TestDefaultConfigsAreReproducible(t *testing.T) {
	assert.Equal(t, DefaultSeed, DefaultAnnealingConfig().Seed)
	assert.Equal(t, DefaultSeed, DefaultGeneticConfig().Seed)

	p := testProblem(model.ProblemLoadAssignment)
	a1, err := NewAnnealingSolver(DefaultAnnealingConfig()).Solve(context.Background(), p)
	require.NoError(t, err)
	a2, err := NewAnnealingSolver(DefaultAnnealingConfig()).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, a1.Assignments, a2.Assignments)

	g1, err := NewGeneticSolver(DefaultGeneticConfig()).Solve(context.Background(), p)
	require.NoError(t, err)
	g2, err := NewGeneticSolver(DefaultGeneticConfig()).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, g1.Assignments, g2.Assignments)
}

func TestAnnealingStopsAtTemperatureFloor(t *testing.T) {
	cfg := DefaultAnnealingConfig()
	cfg.Seed = 1
	sol, err := NewAnnealingSolver(cfg).Solve(context.Background(), testProblem(model.ProblemScheduling))
	require.NoError(t, err)
	assert.Equal(t, model.TerminationTemperatureFloor, sol.Metadata.Termination)
	assert.Equal(t, 135, sol.Metadata.Iterations)
}

func TestAnnealingIterationCap(t *testing.T) {
	cfg := DefaultAnnealingConfig()
	cfg.Seed = 1
	cfg.MaxIterations = 10
	sol, err := NewAnnealingSolver(cfg).Solve(context.Background(), testProblem(model.ProblemLoadAssignment))
	require.NoError(t, err)
	assert.Equal(t, model.TerminationCompleted, sol.Metadata.Termination)
	assert.Equal(t, 10, sol.Metadata.Iterations)
}

func TestAnnealingCancelledReturnsBestSoFar(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sol, err := NewAnnealingSolver(AnnealingConfig{Seed: 3}).Solve(ctx, testProblem(model.ProblemLoadAssignment))
	require.NoError(t, err)
	assert.Equal(t, model.TerminationCancelled, sol.Metadata.Termination)
	assert.Zero(t, sol.Metadata.Iterations)
	assert.Len(t, sol.Assignments, 3)
}

func TestAnnealingDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	sol, err := NewAnnealingSolver(AnnealingConfig{Seed: 3}).Solve(ctx, testProblem(model.ProblemLoadAssignment))
	require.NoError(t, err)
	assert.Equal(t, model.TerminationDeadline, sol.Metadata.Termination)
}

func TestAnnealingTunnelingAcceptance(t *testing.T) {
	s := NewAnnealingSolver(DefaultAnnealingConfig())
	rng := newRand(9)
	assert.True(t, s.accept(-1, 10, rng))
	assert.True(t, s.accept(0, 10, rng))
	// exp(-1e6/1) is zero and the tunneling term is too.
	assert.False(t, s.accept(1e6, 1, rng))
}

func TestSolversRejectUnknownProblemType(t *testing.T) {
	p := testProblem("")
	for _, s := range []Solver{NewAnnealingSolver(AnnealingConfig{}), NewGeneticSolver(GeneticConfig{}), NewLPSolver()} {
		_, err := s.Solve(context.Background(), p)
		require.Error(t, err, s.Name())
		assert.True(t, errors.Is(err, ErrUnsupportedProblemType))
		var ue *UnsupportedProblemTypeError
		require.True(t, errors.As(err, &ue))
		assert.Equal(t, s.Name(), ue.Solver)
	}
}

func TestGeneticDeterministicAndNoWorseThanGreedy(t *testing.T) {
	cfg := DefaultGeneticConfig()
	cfg.Seed = 7
	p := testProblem(model.ProblemResourceAllocation)
	s1, err := NewGeneticSolver(cfg).Solve(context.Background(), p)
	require.NoError(t, err)
	s2, err := NewGeneticSolver(cfg).Solve(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, s1.Assignments, s2.Assignments)
	ev := newEvaluator(p)
	assert.LessOrEqual(t, s1.Cost, ev.cost(ev.greedy()))
	assert.Equal(t, 100, s1.Metadata.Iterations)
	assert.Equal(t, model.TerminationCompleted, s1.Metadata.Termination)
	assertAssignmentInvariant(t, s1, false)
}

func TestGeneticTruncationSelection(t *testing.T) {
	cfg := DefaultGeneticConfig()
	cfg.Seed = 11
	cfg.SuperpositionSelection = false
	cfg.Generations = 20
	sol, err := NewGeneticSolver(cfg).Solve(context.Background(), trapProblem())
	require.NoError(t, err)
	assert.Len(t, sol.Assignments, 2)
	assert.Equal(t, 20, sol.Metadata.Iterations)
}

func TestGeneticCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sol, err := NewGeneticSolver(GeneticConfig{Seed: 5}).Solve(ctx, testProblem(model.ProblemLoadAssignment))
	require.NoError(t, err)
	assert.Equal(t, model.TerminationCancelled, sol.Metadata.Termination)
	assert.Zero(t, sol.Metadata.Iterations)
	assert.Len(t, sol.Assignments, 3)
}

func TestMultipleTasksPerAgentBoundedByMaxTasks(t *testing.T) {
	p := testProblem(model.ProblemLoadAssignment)
	p.Agents = p.Agents[:1]
	p.Agents[0].MaxTasks = 2
	p.Parameters.AllowMultiplePerAgent = true

	cfg := DefaultAnnealingConfig()
	cfg.Seed = 2
	sol, err := NewAnnealingSolver(cfg).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, sol.Assignments, 2)
	assertAssignmentInvariant(t, sol, true)
}

func TestVehicleRoutingRouteIncludesAgent(t *testing.T) {
	cfg := DefaultAnnealingConfig()
	cfg.Seed = 4
	sol, err := NewAnnealingSolver(cfg).Solve(context.Background(), testProblem(model.ProblemVehicleRouting))
	require.NoError(t, err)
	require.NotEmpty(t, sol.Assignments)
	for _, a := range sol.Assignments {
		assert.Len(t, a.Route, 3)
	}
}

func TestLPFindsOptimumGreedyMisses(t *testing.T) {
	p := trapProblem()
	ev := newEvaluator(p)
	assert.Equal(t, 1, ev.assigned(ev.greedy()))

	sol, err := NewLPSolver().Solve(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, sol.Assignments, 2)
	got := map[string]string{}
	for _, a := range sol.Assignments {
		got[a.LoadID] = a.DriverID
	}
	assert.Equal(t, map[string]string{"L1": "B", "L2": "A"}, got)
	assert.Equal(t, 1, sol.Metadata.Iterations)
	assert.Equal(t, "linear_programming", sol.Metadata.Solver)
}

func TestLPSolverFailure(t *testing.T) {
	old := lpSolve
	lpSolve = func(_ []float64, _ *mat.Dense, _ []float64, _ *mat.Dense, _ []float64, _ float64) ([]float64, error) {
		return nil, errors.New("fail")
	}
	defer func() { lpSolve = old }()

	_, err := NewLPSolver().Solve(context.Background(), trapProblem())
	assert.ErrorIs(t, err, ErrLPFailed)
}

func TestLPSolverHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	exited := make(chan struct{}, 2)
	old := lpSolve
	lpSolve = func(_ []float64, _ *mat.Dense, _ []float64, _ *mat.Dense, _ []float64, _ float64) ([]float64, error) {
		<-release
		exited <- struct{}{}
		return nil, errors.New("released")
	}
	defer func() {
		close(release)
		<-exited
		<-exited
		lpSolve = old
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	sol, err := NewLPSolver().Solve(ctx, trapProblem())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, model.TerminationDeadline, sol.Metadata.Termination)
	assert.Zero(t, sol.Metadata.Iterations)
	assertAssignmentInvariant(t, sol, false)

	ctx, cancel = context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	sol, err = NewLPSolver().Solve(ctx, trapProblem())
	require.NoError(t, err)
	assert.Equal(t, model.TerminationCancelled, sol.Metadata.Termination)
}

func TestLPRejectsRouting(t *testing.T) {
	_, err := NewLPSolver().Solve(context.Background(), testProblem(model.ProblemVehicleRouting))
	assert.ErrorIs(t, err, ErrUnsupportedProblemType)
}

func TestEmptyProblem(t *testing.T) {
	p := model.OptimizationProblem{Type: model.ProblemLoadAssignment}
	for _, s := range []Solver{NewAnnealingSolver(AnnealingConfig{}), NewGeneticSolver(GeneticConfig{}), NewLPSolver()} {
		sol, err := s.Solve(context.Background(), p)
		require.NoError(t, err)
		assert.Empty(t, sol.Assignments)
		assert.Equal(t, 1.0, sol.Metadata.Confidence)
	}
}
