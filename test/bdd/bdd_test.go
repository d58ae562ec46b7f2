package bdd

import (
	"os"
	"testing"

	"github.com/cucumber/godog"

	"github.com/simcore/simcore/test/bdd/steps"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	steps.InitializeMarketTradeScenario(sc)
	steps.InitializeRoundaboutTurnScenario(sc)
	steps.InitializeTrainReservationScenario(sc)
	steps.InitializeParkingLeakScenario(sc)
	steps.InitializeReplayRoundTripScenario(sc)
	steps.InitializeLockstepCatchUpScenario(sc)
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
