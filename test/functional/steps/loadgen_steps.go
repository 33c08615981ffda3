package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"sensor-bridge/internal/infra/pubsub"
	"sensor-bridge/internal/loadgen"
	"sensor-bridge/internal/shared_kernel/domain"
)

const (
	_readingValue   = 10
	_waitForReading = 5 * time.Second
)

func (fc *FeatureContext) anInMemoryBroker() error {
	fc.configBroker = pubsub.NewMemoryBroker()
	fc.brokerA = pubsub.NewMemoryBroker()
	fc.brokerB = pubsub.NewMemoryBroker()
	return nil
}

func (fc *FeatureContext) theRegistryAnnouncementIsEnabled() error {
	fc.sendRegistry = true
	return nil
}

func (fc *FeatureContext) theLoadGeneratorIsSetToDoNothing() error {
	fc.doNothing = true
	return nil
}

// runLoadGenerator runs a generator until stop returns, then cancels it and
// waits for every worker to exit.
func (fc *FeatureContext) runLoadGenerator(threads int, stop func(ctx context.Context) error) error {
	if fc.buildErr != nil {
		return fc.buildErr
	}

	handleA := pubsub.NewMemoryPublisher(fc.brokerA, inputTopic, nil)
	handleB := pubsub.NewMemoryPublisher(fc.brokerB, inputTopic, nil)
	fc.pool = loadgen.NewPublisherPool(handleA, handleB, fc.registry.SensorIdentifiers(), loadgen.PoolOptions{
		Threads: threads,
		Value:   _readingValue,
		Active:  !fc.doNothing,
	})
	announcer := loadgen.NewRegistryPublisher(memoryFactory{broker: fc.configBroker}, configurationTopic)
	generator := loadgen.NewGenerator(fc.registry, announcer, nil, fc.pool, []pubsub.Publisher{handleA, handleB}, loadgen.GeneratorOptions{
		SendRegistry: fc.sendRegistry,
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go generator.Run(ctx, wg.Done)

	err := stop(ctx)
	cancel()
	wg.Wait()
	generator.Shutdown()
	return err
}

func (fc *FeatureContext) theLoadGeneratorRunsUntilReadingsWereSent(threads, readings int) error {
	return fc.runLoadGenerator(threads, func(context.Context) error {
		deadline := time.Now().Add(_waitForReading)
		for time.Now().Before(deadline) {
			if fc.readingsSent() >= readings {
				return nil
			}
			time.Sleep(5 * time.Millisecond)
		}
		return fmt.Errorf("expected %d readings within %s, got %d", readings, _waitForReading, fc.readingsSent())
	})
}

func (fc *FeatureContext) theLoadGeneratorRunsFor(threads int, duration string) error {
	d, err := time.ParseDuration(duration)
	if err != nil {
		return err
	}
	return fc.runLoadGenerator(threads, func(context.Context) error {
		time.Sleep(d)
		return nil
	})
}

func (fc *FeatureContext) readingsSent() int {
	return fc.brokerA.Count(inputTopic) + fc.brokerB.Count(inputTopic)
}

func (fc *FeatureContext) theConfigurationTopicShouldHoldEvent(count int, event string) error {
	messages := fc.configBroker.Messages(configurationTopic)
	if len(messages) != count {
		return fmt.Errorf("expected %d configuration events, got %d", count, len(messages))
	}
	for _, m := range messages {
		if string(m.Key) != event {
			return fmt.Errorf("expected event %q, got %q", event, m.Key)
		}
	}
	return nil
}

type announcedSensor struct {
	Identifier string             `json:"identifier"`
	Children   *[]announcedSensor `json:"children"`
}

func (s announcedSensor) leaves(out []string) []string {
	if s.Children == nil {
		return append(out, s.Identifier)
	}
	for _, c := range *s.Children {
		out = c.leaves(out)
	}
	return out
}

func (fc *FeatureContext) theAnnouncedRegistryShouldListTheMachineSensors() error {
	messages := fc.configBroker.Messages(configurationTopic)
	if len(messages) == 0 {
		return errors.New("no registry was announced")
	}

	var announced struct {
		TopLevelSensor announcedSensor `json:"topLevelSensor"`
	}
	if err := json.Unmarshal(messages[0].Payload, &announced); err != nil {
		return fmt.Errorf("decoding announced registry: %w", err)
	}

	expected := fc.registry.SensorIdentifiers()
	actual := announced.TopLevelSensor.leaves(nil)
	if !slices.Equal(actual, expected) {
		return fmt.Errorf("expected announced sensors %v, got %v", expected, actual)
	}
	return nil
}

func (fc *FeatureContext) bothPublisherHandlesShouldHaveSentReadings() error {
	if fc.brokerA.Count(inputTopic) == 0 || fc.brokerB.Count(inputTopic) == 0 {
		return fmt.Errorf("expected readings on both handles, got %d and %d",
			fc.brokerA.Count(inputTopic), fc.brokerB.Count(inputTopic))
	}
	return nil
}

func (fc *FeatureContext) onlyTheFirstPublisherHandleShouldHaveSentReadings() error {
	if fc.brokerA.Count(inputTopic) == 0 {
		return errors.New("expected readings on the first handle")
	}
	if n := fc.brokerB.Count(inputTopic); n != 0 {
		return fmt.Errorf("expected no readings on the second handle, got %d", n)
	}
	return nil
}

func (fc *FeatureContext) everyReadingShouldCarryTheValue(value int) error {
	sensors := fc.registry.SensorIdentifiers()
	for _, broker := range []*pubsub.MemoryBroker{fc.brokerA, fc.brokerB} {
		for _, m := range broker.Messages(inputTopic) {
			reading, ok := m.Message.(domain.Reading)
			if !ok {
				return fmt.Errorf("unexpected message type %T", m.Message)
			}
			if int(reading.Value) != value {
				return fmt.Errorf("expected value %d, got %d", value, reading.Value)
			}
			if string(m.Key) != reading.Identifier || !slices.Contains(sensors, reading.Identifier) {
				return fmt.Errorf("reading keyed %q for unknown sensor %q", m.Key, reading.Identifier)
			}
		}
	}
	return nil
}

func (fc *FeatureContext) noReadingsShouldHaveBeenSent() error {
	if n := fc.readingsSent(); n != 0 {
		return fmt.Errorf("expected no readings, got %d", n)
	}
	return nil
}

func (fc *FeatureContext) everyWorkerShouldHaveIteratedOverTheSensors() error {
	for _, w := range fc.pool.Workers() {
		if w.Passes() == 0 {
			return fmt.Errorf("worker %d never iterated over the sensors", w.Index())
		}
		if w.Emitted() != 0 {
			return fmt.Errorf("worker %d emitted %d readings", w.Index(), w.Emitted())
		}
	}
	return nil
}
