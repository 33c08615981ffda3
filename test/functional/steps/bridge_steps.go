package steps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"sensor-bridge/internal/bridge"
	"sensor-bridge/internal/bridge/raritan"
	"sensor-bridge/internal/bridge/sources"
	"sensor-bridge/internal/infra/httpserver"
	"sensor-bridge/internal/infra/pubsub"
	"sensor-bridge/internal/shared_kernel/domain"

	"github.com/cucumber/godog"
)

const _stopTimeout = 5 * time.Second

func (fc *FeatureContext) aRunningRaritanBridge() error {
	publisher := pubsub.NewMemoryPublisher(fc.brokerA, inputTopic, nil)
	sender, err := bridge.NewKafkaRecordSender(publisher, inputTopic, bridge.IdentifierKey)
	if err != nil {
		return err
	}

	b, err := bridge.NewBuilder().
		WithTransformer(raritan.NewTransformer(raritan.DefaultSensorID).Transform).
		WithSender(sender).
		Build()
	if err != nil {
		return err
	}
	if err := b.Start(context.Background()); err != nil {
		return err
	}
	fc.bridge = b

	server := httpserver.NewServer("", sources.NewRaritanController(b))
	fc.server = httptest.NewServer(server.Handler())
	return nil
}

func (fc *FeatureContext) iPushTheFollowingRaritanExport(body *godog.DocString) error {
	res, err := http.Post(fc.server.URL+"/raritan", "application/json", strings.NewReader(body.Content))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	fc.response = res.StatusCode
	return nil
}

func (fc *FeatureContext) theBridgeIsStopped() error {
	ctx, cancel := context.WithTimeout(context.Background(), _stopTimeout)
	defer cancel()
	return fc.bridge.Stop(ctx)
}

func (fc *FeatureContext) theResponseStatusCodeShouldBe(code int) error {
	if fc.response != code {
		return fmt.Errorf("expected status code %d, got %d", code, fc.response)
	}
	return nil
}

func (fc *FeatureContext) theInputTopicShouldHoldTheReadings(table *godog.Table) error {
	messages := fc.brokerA.Messages(inputTopic)
	rows := table.Rows[1:]
	if len(messages) != len(rows) {
		return fmt.Errorf("expected %d readings, got %d", len(rows), len(messages))
	}

	for i, row := range rows {
		timestamp, err := strconv.ParseInt(row.Cells[1].Value, 10, 64)
		if err != nil {
			return err
		}
		value, err := strconv.ParseInt(row.Cells[2].Value, 10, 32)
		if err != nil {
			return err
		}
		expected := domain.Reading{
			Identifier: row.Cells[0].Value,
			Timestamp:  timestamp,
			Value:      int32(value),
		}

		actual, ok := messages[i].Message.(domain.Reading)
		if !ok {
			return fmt.Errorf("unexpected message type %T", messages[i].Message)
		}
		if actual != expected {
			return fmt.Errorf("reading %d: expected %+v, got %+v", i, expected, actual)
		}
		if string(messages[i].Key) != expected.Identifier {
			return fmt.Errorf("reading %d: expected key %q, got %q", i, expected.Identifier, messages[i].Key)
		}
	}
	return nil
}

func (fc *FeatureContext) theInputTopicShouldBeEmpty() error {
	if n := fc.brokerA.Count(inputTopic); n != 0 {
		return errors.New("expected the input topic to be empty, got " + strconv.Itoa(n) + " readings")
	}
	return nil
}
