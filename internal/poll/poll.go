//go:build linux

// Package poll wraps an epoll instance plus an eventfd used to wake a
// blocked Wait from another goroutine.
package poll

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// Interest masks.
const (
	// Readable is level-triggered read readiness, used for the listening socket.
	Readable = unix.EPOLLIN
	// EdgeReadWrite asks for edge-triggered read, write and peer-hangup transitions.
	EdgeReadWrite = unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET
)

// Event is one readiness notification.
type Event struct {
	Fd       int
	Readable bool
	Writable bool
	Hangup   bool // peer hung up, half-closed, or the descriptor has an error
}

// Poller owns an epoll descriptor. Add, Del and Wait must be called from a
// single goroutine; Wake may be called from any goroutine.
type Poller struct {
	epfd   int
	wakefd int
	events []unix.EpollEvent
	out    []Event
}

// New creates the epoll instance. maxEvents bounds how many events one Wait returns.
func New(maxEvents int) (*Poller, error) {
	if maxEvents <= 0 {
		maxEvents = 128
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1 failed: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd failed: %w", err)
	}

	p := &Poller{
		epfd:   epfd,
		wakefd: wakefd,
		events: make([]unix.EpollEvent, maxEvents),
		out:    make([]Event, 0, maxEvents),
	}

	if err := p.Add(wakefd, Readable); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

// Add registers fd with the given interest mask.
func (p *Poller) Add(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl add fd %d failed: %w", fd, err)
	}
	return nil
}

// Del removes fd from the interest set.
func (p *Poller) Del(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll_ctl del fd %d failed: %w", fd, err)
	}
	return nil
}

// Wait blocks until at least one descriptor is ready, the poller is woken,
// or timeoutMs elapses (-1 waits forever). Interrupted waits are retried.
// The returned slice is reused by the next call. Wake-ups are consumed here
// and never reported as events.
func (p *Poller) Wait(timeoutMs int) ([]Event, error) {
	for {
		n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, fmt.Errorf("epoll_wait failed: %w", err)
		}

		p.out = p.out[:0]
		for i := 0; i < n; i++ {
			ev := p.events[i]
			fd := int(ev.Fd)
			if fd == p.wakefd {
				p.drainWake()
				continue
			}
			p.out = append(p.out, Event{
				Fd:       fd,
				Readable: ev.Events&unix.EPOLLIN != 0,
				Writable: ev.Events&unix.EPOLLOUT != 0,
				Hangup:   ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0,
			})
		}
		return p.out, nil
	}
}

// Wake makes a blocked or upcoming Wait return.
func (p *Poller) Wake() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(p.wakefd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write failed: %w", err)
	}
	return nil
}

func (p *Poller) drainWake() {
	var buf [8]byte
	unix.Read(p.wakefd, buf[:])
}

// Close releases the epoll and eventfd descriptors.
func (p *Poller) Close() error {
	err := unix.Close(p.wakefd)
	if cerr := unix.Close(p.epfd); err == nil {
		err = cerr
	}
	return err
}
