package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetpilot/internal/app/ports"
)

func newDemo() *Provider {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return NewProvider(DemoSeed(now), func() time.Time { return now })
}

func TestProvider_StopStartCycle(t *testing.T) {
	p := newDemo()
	ctx := context.Background()

	change, err := p.StopInstance(ctx, "i-0a1b2c3d4e5f60001")
	require.NoError(t, err)
	assert.Equal(t, "running", change.PreviousState)
	assert.Equal(t, "stopped", change.CurrentState)

	require.NoError(t, p.ModifyInstanceType(ctx, "i-0a1b2c3d4e5f60001", "t3.small"))
	inst, _ := p.Instance("i-0a1b2c3d4e5f60001")
	assert.Equal(t, "t3.small", inst.InstanceType)

	_, err = p.StartInstance(ctx, "i-0a1b2c3d4e5f60001")
	require.NoError(t, err)
	assert.Equal(t, []string{"StopInstance", "ModifyInstanceType", "StartInstance"}, p.Calls())
}

func TestProvider_TypedErrors(t *testing.T) {
	p := newDemo()
	ctx := context.Background()

	_, err := p.DescribeInstance(ctx, "i-missing")
	assert.Equal(t, ports.ProviderNotFound, ports.ProviderErrorKindOf(err))

	err = p.ModifyInstanceType(ctx, "i-0a1b2c3d4e5f60001", "t3.small")
	assert.Equal(t, ports.ProviderInvalidState, ports.ProviderErrorKindOf(err))

	err = p.DeleteVolume(ctx, "vol-0a1b2c3d4e5f60001")
	assert.Equal(t, ports.ProviderInvalidState, ports.ProviderErrorKindOf(err))
}

func TestProvider_FailNextIsOneShot(t *testing.T) {
	p := newDemo()
	boom := errors.New("boom")
	p.FailNext("ListInstances", boom)

	_, err := p.ListInstances(context.Background(), "")
	assert.ErrorIs(t, err, boom)
	got, err := p.ListInstances(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestProvider_ImagesAndAlarmsByInstance(t *testing.T) {
	p := newDemo()
	ctx := context.Background()

	_, err := p.CreateImage(ctx, ports.ImageSpec{InstanceID: "i-0a1b2c3d4e5f60001", Name: "web-1-backup"})
	require.NoError(t, err)
	images, err := p.ListImages(ctx, "i-0a1b2c3d4e5f60001")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "AMI", images[0].Tags["BackupType"])

	require.NoError(t, p.PutAlarm(ctx, ports.AlarmSpec{AlarmName: "i-0a1b2c3d4e5f60001-high-cpu", MetricName: "CPUUtilization"}))
	alarms, err := p.ListAlarms(ctx, "i-0a1b2c3d4e5f60001")
	require.NoError(t, err)
	assert.Len(t, alarms, 1)

	vols, err := p.ListVolumes(ctx, "i-0a1b2c3d4e5f60001")
	require.NoError(t, err)
	require.Len(t, vols, 1)
	assert.Equal(t, "vol-0a1b2c3d4e5f60001", vols[0].VolumeID)
}
