package steps

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"sensekit-server/internal/calibration"
	"sensekit-server/internal/infra/pubsub"
	"sensekit-server/internal/ingestion"
	"sensekit-server/test/functional/driver"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/require"
)

const (
	_eventually = 5 * time.Second
	_tick       = 20 * time.Millisecond
)

type FeatureContext struct {
	broker   *driver.Broker
	pipeline *driver.Pipeline
	require  *require.Assertions
	t        godog.TestingT
}

func NewFeatureContext(broker *driver.Broker) *FeatureContext {
	return &FeatureContext{broker: broker}
}

func (fc *FeatureContext) RegisterSteps(ctx *godog.ScenarioContext) {
	ctx.Given(`^the ingestor is running for hardware line "([^"]*)"$`, fc.theIngestorIsRunningForHardwareLine)
	ctx.Given(`^device "([^"]*)" is registered with hardware "([^"]*)"$`, fc.deviceIsRegisteredWithHardware)

	ctx.When(`^device "([^"]*)" publishes channel (\d+) with raw value (-?\d+)$`, fc.devicePublishesChannelWithRawValue)
	ctx.When(`^the payload "([^"]*)" is published on "([^"]*)"$`, fc.thePayloadIsPublishedOn)
	ctx.When(`^the ingestor is stopped$`, fc.theIngestorIsStopped)

	ctx.Then(`^(\d+) readings? (?:is|are) stored for device "([^"]*)"$`, fc.readingsAreStoredForDevice)
	ctx.Then(`^no reading is stored for device "([^"]*)"$`, fc.noReadingIsStoredForDevice)
	ctx.Then(`^the stored "([^"]*)" reading of device "([^"]*)" has value (-?[\d.]+)$`, fc.theStoredReadingHasValue)
	ctx.Then(`^the stored "([^"]*)" reading of device "([^"]*)" has raw (\d+) and secondary ([\d.]+)$`, fc.theStoredReadingHasRawAndSecondary)
	ctx.Then(`^the stored "([^"]*)" reading of device "([^"]*)" is not calibrated$`, fc.theStoredReadingIsNotCalibrated)
	ctx.Then(`^(\d+) reading events? (?:is|are) published for device "([^"]*)"$`, fc.readingEventsArePublishedForDevice)
	ctx.Then(`^the ingestor is "([^"]*)"$`, fc.theIngestorIs)

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		fc.t = godog.T(ctx)
		fc.require = require.New(fc.t)

		fc.reset()
		return ctx, nil
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		fc.stopPipeline()
		return ctx, err
	})
}

func (fc *FeatureContext) reset() {
	fc.stopPipeline()
}

func (fc *FeatureContext) stopPipeline() {
	if fc.pipeline == nil {
		return
	}
	// a scenario may have stopped it already
	_ = fc.pipeline.Stop(10 * time.Second)
	fc.pipeline = nil
}

func (fc *FeatureContext) theIngestorIsRunningForHardwareLine(line string) error {
	pipeline, err := driver.StartPipeline(fc.broker, line)
	fc.require.NoError(err)
	fc.pipeline = pipeline

	fc.require.Eventually(func() bool {
		return pipeline.State() == ingestion.StateSubscribed
	}, _eventually, _tick, "ingestor never subscribed")
	return nil
}

func (fc *FeatureContext) deviceIsRegisteredWithHardware(deviceID, hardwareID string) error {
	return fc.pipeline.Directory.RegisterDevice(context.Background(), deviceID, calibration.HardwareID(hardwareID))
}

func (fc *FeatureContext) devicePublishesChannelWithRawValue(deviceID string, channel int, raw int64) error {
	payload := fmt.Sprintf(`{"data":[{"recorded_at":%q,"sensors":[{"id":%d,"value":%d}]}]}`,
		time.Now().UTC().Format(time.RFC3339), channel, raw)
	return fc.pipeline.Publish(fc.pipeline.DeviceTopic(deviceID), []byte(payload))
}

func (fc *FeatureContext) thePayloadIsPublishedOn(payload, topic string) error {
	return fc.pipeline.Publish(topic, []byte(payload))
}

func (fc *FeatureContext) theIngestorIsStopped() error {
	return fc.pipeline.Stop(10 * time.Second)
}

func (fc *FeatureContext) readingsAreStoredForDevice(count int, deviceID string) error {
	fc.require.Eventually(func() bool {
		stored, err := fc.pipeline.Store.CountByDevice(context.Background(), deviceID)
		return err == nil && stored == int64(count)
	}, _eventually, _tick, "expected %d readings for %s", count, deviceID)
	return nil
}

func (fc *FeatureContext) noReadingIsStoredForDevice(deviceID string) error {
	stored, err := fc.pipeline.Store.CountByDevice(context.Background(), deviceID)
	fc.require.NoError(err)
	fc.require.Zero(stored)
	return nil
}

func (fc *FeatureContext) storedReading(sensor, deviceID string) calibration.Reading {
	var found *calibration.Reading
	fc.require.Eventually(func() bool {
		readings, err := fc.pipeline.Store.FindByDevice(context.Background(), deviceID, 100)
		if err != nil {
			return false
		}
		for _, reading := range readings {
			if string(reading.Sensor) == sensor {
				found = &reading
				return true
			}
		}
		return false
	}, _eventually, _tick, "no %s reading for %s", sensor, deviceID)
	return *found
}

func (fc *FeatureContext) theStoredReadingHasValue(sensor, deviceID, value string) error {
	expected, err := strconv.ParseFloat(value, 64)
	fc.require.NoError(err)

	reading := fc.storedReading(sensor, deviceID)
	fc.require.NotNil(reading.Value)
	fc.require.InDelta(expected, *reading.Value, 1e-9)
	return nil
}

func (fc *FeatureContext) theStoredReadingHasRawAndSecondary(sensor, deviceID string, raw int64, secondary string) error {
	expected, err := strconv.ParseFloat(secondary, 64)
	fc.require.NoError(err)

	reading := fc.storedReading(sensor, deviceID)
	fc.require.Equal(raw, reading.Raw)
	fc.require.NotNil(reading.Secondary)
	fc.require.InDelta(expected, *reading.Secondary, 1e-9)
	return nil
}

func (fc *FeatureContext) theStoredReadingIsNotCalibrated(sensor, deviceID string) error {
	reading := fc.storedReading(sensor, deviceID)
	fc.require.Nil(reading.Value)
	fc.require.Equal(calibration.FormulaPassthrough, reading.Kind)
	return nil
}

func (fc *FeatureContext) readingEventsArePublishedForDevice(count int, deviceID string) error {
	fc.require.Eventually(func() bool {
		published := 0
		for _, message := range fc.pipeline.Events.Messages(driver.ReadingsTopic) {
			if message.Key == pubsub.Key(deviceID) {
				published++
			}
		}
		return published == count
	}, _eventually, _tick, "expected %d reading events for %s", count, deviceID)
	return nil
}

func (fc *FeatureContext) theIngestorIs(state string) error {
	fc.require.Equal(state, fc.pipeline.State().String())
	return nil
}
