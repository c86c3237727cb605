package server

import (
	"context"
	"time"

	"github.com/marmos91/umsd/pkg/api/handlers"
)

// Inserted reports media presence on the selected unit.
func (s *Server) Inserted(ctx context.Context) bool {
	return s.device.IsInserted(ctx)
}

// Status collects the live view served at /status.
func (s *Server) Status(context.Context) handlers.Status {
	unit, slots := s.service.State().Snapshot()

	st := handlers.Status{
		Device:       s.service.Name(),
		Version:      s.opts.Version,
		SelectedUnit: unit,
		Queue:        handlers.QueueStatus{Depth: s.queue.Len(), Capacity: s.queue.Cap()},
		Media:        handlers.MediaStatus{Attached: s.device.Attached(), Started: s.device.Started()},
		Connections:  s.transport.ActiveConnections(),
	}
	if !s.started.IsZero() {
		st.Uptime = time.Since(s.started).Truncate(time.Second).String()
	}

	for _, sl := range slots {
		st.Slots = append(st.Slots, handlers.SlotStatus{Class: sl.Class, Result: sl.Result, Pending: sl.Pending})
	}
	for i, b := range s.units {
		st.Units = append(st.Units, handlers.UnitStatus{
			Index:       uint32(i),
			Backend:     b.Name(),
			SectorSize:  b.SectorSize(),
			SectorCount: b.SectorCount(),
			ReadOnly:    b.ReadOnly(),
		})
	}

	hs := s.heap.Stats()
	st.Heap = &handlers.HeapStatus{
		Size:        hs.Size,
		Used:        hs.Used,
		Free:        hs.Free,
		Allocations: hs.Allocations,
		LargestFree: hs.LargestFree,
	}

	if d := s.disc.Current(); d != nil {
		st.Disc = string(d.ID[:])
	}
	return st
}

var _ handlers.Source = (*Server)(nil)
