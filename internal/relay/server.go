package relay

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mharkness/go-chatrelay/internal/bus"
	"github.com/mharkness/go-chatrelay/internal/durable"
	"github.com/mharkness/go-chatrelay/internal/stats"
	"github.com/mharkness/go-chatrelay/internal/store"
	"github.com/mharkness/go-chatrelay/internal/types"
)

const (
	MetricConnections  = "connections"
	MetricPublished    = "messages_published_total"
	MetricBroadcast    = "messages_broadcast_total"
	MetricInvalid      = "invalid_messages_total"
	MetricHistoryLoads = "history_loads_total"
)

const publishTimeout = 5 * time.Second

// Server routes chat traffic for one relay instance: joins and sends from
// locally connected clients, and envelopes arriving on the fan-out bus.
type Server struct {
	log      *log.Logger
	db       store.Repository
	bus      bus.Bus
	pipeline durable.Pipeline
	registry *Registry
	recorder stats.Recorder
	validate *validator.Validate
}

func NewServer(logger *log.Logger, db store.Repository, b bus.Bus, pipeline durable.Pipeline, recorder stats.Recorder) (*Server, error) {
	recorder.RegisterGauge(MetricConnections, "Live websocket connections on this instance.")
	recorder.RegisterCounter(MetricPublished, "Envelopes accepted onto the fan-out bus.")
	recorder.RegisterCounter(MetricBroadcast, "Live messages delivered to local clients.")
	recorder.RegisterCounter(MetricInvalid, "Sends dropped before publish for failing validation.")
	recorder.RegisterCounter(MetricHistoryLoads, "Backlog loads served on group join.")

	return &Server{
		log:      logger,
		db:       db,
		bus:      b,
		pipeline: pipeline,
		registry: NewRegistry(),
		recorder: recorder,
		validate: validator.New(),
	}, nil
}

// Run subscribes to the fan-out bus and blocks until ctx is cancelled.
// Every envelope any instance publishes, including this one, arrives here.
func (s *Server) Run(ctx context.Context) error {
	return s.bus.Subscribe(ctx, s.handleBusMessage)
}

func (s *Server) Register(c *Client) error {
	id, err := s.registry.Register(c)
	if err != nil {
		return err
	}

	c.id = id
	s.recorder.Incr(MetricConnections)
	s.log.Printf("registered connection %q for user %q", c.id, c.user.Id)
	return nil
}

func (s *Server) Deregister(c *Client) {
	s.registry.Unregister(c.id)
	s.recorder.Decr(MetricConnections)
	s.log.Printf("removed connection %q", c.id)
}

// Shutdown stops every live client connection.
func (s *Server) Shutdown() {
	s.log.Println("stopping client connections")
	for _, c := range s.registry.Clients() {
		c.stopClient()
	}
}

// handleJoin registers local membership and unicasts the group's backlog to
// the joining connection. Membership is checked against the authoritative
// roster before anything else happens.
func (s *Server) handleJoin(msg *ClientMessage) {
	c := msg.client
	groupId := msg.JoinGroup.GroupId
	if groupId == "" {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	if _, err := s.db.GetGroup(groupId); err != nil {
		c.queueMessage(ErrGroupNotFound(msg.Id))
		return
	}

	if !s.db.IsMember(c.user.Id, groupId) {
		c.queueMessage(ErrNotMember(msg.Id))
		return
	}

	s.registry.Join(c.id, groupId)

	history, err := s.db.ListMessages(groupId)
	if err != nil {
		s.log.Println("ListMessages:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	s.recorder.Incr(MetricHistoryLoads)
	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: Now(),
		},
		PreviousMessages: &PreviousMessages{
			GroupId: groupId,
			Messages: lo.Map(history, func(m store.Message, _ int) types.ChatMessage {
				return types.ChatMessage{
					Id:        m.Id,
					GroupId:   m.GroupId,
					SenderId:  m.SenderId,
					Content:   m.Content,
					FirstName: m.FirstName,
					LastName:  m.LastName,
					CreatedAt: m.CreatedAt,
				}
			}),
		},
	})
}

func (s *Server) handleLeave(msg *ClientMessage) {
	c := msg.client
	if msg.LeaveGroup.GroupId == "" {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	s.registry.Leave(c.id, msg.LeaveGroup.GroupId)
	c.queueMessage(NoErrOK(msg.Id))
}

// handleSend validates the send, publishes an envelope to the bus, and
// submits it to the persistence pipeline. The sender id always comes from
// the authenticated session, never from the payload. Nothing is delivered
// to live subscribers before the bus accepts the envelope.
func (s *Server) handleSend(msg *ClientMessage) {
	c := msg.client

	createdAt := msg.Timestamp
	if createdAt.IsZero() {
		createdAt = Now()
	}

	env := types.Envelope{
		Id:        uuid.NewString(),
		GroupId:   msg.SendMessage.GroupId,
		SenderId:  c.user.Id,
		Content:   msg.SendMessage.Content,
		CreatedAt: createdAt,
	}

	if err := s.validate.Struct(env); err != nil {
		s.recorder.Incr(MetricInvalid)
		s.log.Println("dropping invalid send:", err)
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	if !s.db.IsMember(env.SenderId, env.GroupId) {
		c.queueMessage(ErrNotMember(msg.Id))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := s.bus.Publish(ctx, env); err != nil {
		s.log.Println("bus publish:", err)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
		return
	}
	s.recorder.Incr(MetricPublished)

	if err := s.pipeline.Submit(ctx, env); err != nil {
		s.log.Println("pipeline submit:", err)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
		return
	}

	c.queueMessage(NoErrAccepted(msg.Id))
}

// handleBusMessage delivers an envelope to this instance's members of the
// envelope's group. Connections that left or disconnected since publish are
// simply absent from the snapshot; delivery to them is a no-op, not an
// error.
func (s *Server) handleBusMessage(env types.Envelope) {
	for _, c := range s.registry.MembersOf(env.GroupId) {
		delivered := c.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{
				Timestamp: Now(),
			},
			NewMessage: &NewMessage{
				Id:        env.Id,
				GroupId:   env.GroupId,
				SenderId:  env.SenderId,
				Content:   env.Content,
				CreatedAt: env.CreatedAt,
			},
		})
		if delivered {
			s.recorder.Incr(MetricBroadcast)
		}
	}
}
