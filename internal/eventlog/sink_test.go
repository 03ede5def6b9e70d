package eventlog_test

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/akshitanchan/marketsim/internal/eventlog"
	"github.com/akshitanchan/marketsim/internal/eventlog/mocks"
)

func TestMultiStopsAtFirstError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	failing := mocks.NewMockSink(ctrl)
	never := mocks.NewMockSink(ctrl)
	boom := errors.New("disk full")
	failing.EXPECT().Write(gomock.Any()).Return(boom).Times(1)
	never.EXPECT().Write(gomock.Any()).Times(0)

	mem := &eventlog.MemorySink{}
	err := eventlog.Multi(mem, failing, never).Write(&eventlog.Record{Seq: 1})
	assert.Equal(t, boom, err)
	assert.Len(t, mem.Records, 1)
}
