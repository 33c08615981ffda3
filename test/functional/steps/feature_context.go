package steps

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"

	"sensor-bridge/internal/bridge"
	"sensor-bridge/internal/infra/pubsub"
	"sensor-bridge/internal/loadgen"
	"sensor-bridge/internal/shared_kernel/domain"

	"github.com/cucumber/godog"
)

const (
	inputTopic         pubsub.Topic = "input"
	configurationTopic pubsub.Topic = "configuration"
)

type FeatureContext struct {
	registry domain.SensorRegistry
	buildErr error

	configBroker *pubsub.MemoryBroker
	brokerA      *pubsub.MemoryBroker
	brokerB      *pubsub.MemoryBroker
	sendRegistry bool
	doNothing    bool
	pool         *loadgen.PublisherPool

	bridge   *bridge.Bridge
	server   *httptest.Server
	response int
}

func NewFeatureContext() *FeatureContext {
	return &FeatureContext{}
}

func (fc *FeatureContext) RegisterSteps(ctx *godog.ScenarioContext) {
	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		*fc = FeatureContext{}
		return ctx, nil
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if fc.bridge != nil {
			_ = fc.bridge.Stop(context.Background())
		}
		if fc.server != nil {
			fc.server.Close()
		}
		return ctx, nil
	})

	// Topology steps
	ctx.Given(`^a "([^"]*)" topology with (\d+) nested groups and (\d+) sensors$`, fc.aTopologyWithNestedGroupsAndSensors)
	ctx.Then(`^the machine sensors should be "([^"]*)"$`, fc.theMachineSensorsShouldBe)
	ctx.Then(`^the top level sensor should be "([^"]*)"$`, fc.theTopLevelSensorShouldBe)
	ctx.Then(`^the top level sensor should have the children "([^"]*)"$`, fc.theTopLevelSensorShouldHaveTheChildren)
	ctx.Then(`^there should be (\d+) machine sensors$`, fc.thereShouldBeMachineSensors)
	ctx.Then(`^building the topology should fail$`, fc.buildingTheTopologyShouldFail)

	// Load generator steps
	ctx.Given(`^an in-memory broker$`, fc.anInMemoryBroker)
	ctx.Given(`^the registry announcement is enabled$`, fc.theRegistryAnnouncementIsEnabled)
	ctx.Given(`^the load generator is set to do nothing$`, fc.theLoadGeneratorIsSetToDoNothing)
	ctx.When(`^the load generator runs with (\d+) threads until (\d+) readings were sent$`, fc.theLoadGeneratorRunsUntilReadingsWereSent)
	ctx.When(`^the load generator runs with (\d+) threads for (\S+)$`, fc.theLoadGeneratorRunsFor)
	ctx.Then(`^the configuration topic should hold (\d+) "([^"]*)" event$`, fc.theConfigurationTopicShouldHoldEvent)
	ctx.Then(`^the announced registry should list the machine sensors$`, fc.theAnnouncedRegistryShouldListTheMachineSensors)
	ctx.Then(`^both publisher handles should have sent readings$`, fc.bothPublisherHandlesShouldHaveSentReadings)
	ctx.Then(`^only the first publisher handle should have sent readings$`, fc.onlyTheFirstPublisherHandleShouldHaveSentReadings)
	ctx.Then(`^every reading should carry the value (\d+)$`, fc.everyReadingShouldCarryTheValue)
	ctx.Then(`^no readings should have been sent$`, fc.noReadingsShouldHaveBeenSent)
	ctx.Then(`^every worker should have iterated over the sensors$`, fc.everyWorkerShouldHaveIteratedOverTheSensors)

	// Bridge steps
	ctx.Given(`^a running Raritan bridge$`, fc.aRunningRaritanBridge)
	ctx.When(`^I push the following Raritan export:$`, fc.iPushTheFollowingRaritanExport)
	ctx.When(`^the bridge is stopped$`, fc.theBridgeIsStopped)
	ctx.Then(`^the response status code should be (\d+)$`, fc.theResponseStatusCodeShouldBe)
	ctx.Then(`^the input topic should hold the readings:$`, fc.theInputTopicShouldHoldTheReadings)
	ctx.Then(`^the input topic should be empty$`, fc.theInputTopicShouldBeEmpty)
}

// memoryFactory opens publishers on one broker.
type memoryFactory struct {
	broker *pubsub.MemoryBroker
}

func (f memoryFactory) New(topic pubsub.Topic, codec pubsub.Codec) (pubsub.Publisher, error) {
	return pubsub.NewMemoryPublisher(f.broker, topic, codec), nil
}
