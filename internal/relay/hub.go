package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventType определяет типы событий канала
type EventType string

const (
	// Системные типы
	TypePing EventType = "ping"
	TypePong EventType = "pong"

	// Клиент -> сервер
	TypeJoinRoom    EventType = "join-room"
	TypeLeaveRoom   EventType = "leave-room"
	TypeSendMessage EventType = "send-message"

	// Сервер -> клиент
	TypeNewMessage EventType = "new-message"
	TypeNewFile    EventType = "new-file"
	TypeNotice     EventType = "notification"
	TypeError      EventType = "error"
)

// Event — кадр реального времени. Полезная нагрузка типизируется на границе:
// каждая сторона разбирает Data в конкретную структуру своего события.
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty"`
	UserID    uuid.UUID       `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// roomEvent — уже сериализованный кадр, ждущий рассылки по комнате.
type roomEvent struct {
	roomID  uuid.UUID
	payload []byte
}

// Hub — явный реестр соединений и подписок на комнаты. Владеет им шлюз
// соединений; реле получает его по ссылке, глобального состояния нет.
//
// Все публикации проходят через один цикл Run, поэтому подписчики одной
// комнаты видят события в одном и том же относительном порядке.
type Hub struct {
	clients map[uuid.UUID]*Client

	// Соединения по UserID (у пользователя может быть несколько вкладок)
	userClients map[uuid.UUID]map[uuid.UUID]*Client

	// Подписчики комнат
	rooms map[uuid.UUID]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client
	publish    chan roomEvent

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[uuid.UUID]map[uuid.UUID]*Client),
		rooms:       make(map[uuid.UUID]map[uuid.UUID]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		publish:     make(chan roomEvent, 256),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run запускает цикл hub'а
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case ev := <-h.publish:
			h.broadcastToRoom(ev.roomID, ev.payload)

		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop останавливает hub и закрывает все соединения
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.userClients = make(map[uuid.UUID]map[uuid.UUID]*Client)
	h.rooms = make(map[uuid.UUID]map[uuid.UUID]*Client)
}

// Register и Unregister не блокируются после остановки hub'а:
// цикл Run уже не читает каналы
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Publish ставит сериализованное событие в очередь рассылки по комнате.
// Доставка best-effort: медленное или мёртвое соединение события теряет,
// границей долговечности остаётся персистентность, не доставка.
func (h *Hub) Publish(roomID uuid.UUID, payload []byte) {
	select {
	case h.publish <- roomEvent{roomID: roomID, payload: payload}:
	case <-h.ctx.Done():
	}
}

// PublishEvent сериализует событие и публикует его в комнату.
func (h *Hub) PublishEvent(roomID uuid.UUID, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.Publish(roomID, data)
	return nil
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[uuid.UUID]*Client)
	}
	h.userClients[client.UserID][client.ID] = client

	logrus.WithFields(logrus.Fields{
		"client_id": client.ID,
		"user_id":   client.UserID,
	}).Debug("Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	// Разрыв соединения снимает все привязки к комнатам
	for roomID := range client.Rooms {
		h.removeFromRoomUnsafe(client, roomID)
	}

	if userClients, ok := h.userClients[client.UserID]; ok {
		delete(userClients, client.ID)
		if len(userClients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}

	delete(h.clients, client.ID)
	close(client.Send)

	logrus.WithFields(logrus.Fields{
		"client_id": client.ID,
		"user_id":   client.UserID,
	}).Debug("Client unregistered")
}

// JoinRoom привязывает соединение к каналу комнаты. Проверка членства —
// забота вызывающего: hub только ведёт реестр подписок.
func (h *Hub) JoinRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[uuid.UUID]*Client)
	}

	h.rooms[roomID][client.ID] = client
	client.mu.Lock()
	client.Rooms[roomID] = true
	client.mu.Unlock()
}

func (h *Hub) LeaveRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomUnsafe(client, roomID)
}

func (h *Hub) removeFromRoomUnsafe(client *Client, roomID uuid.UUID) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := room[client.ID]; !ok {
		return
	}

	delete(room, client.ID)
	client.mu.Lock()
	delete(client.Rooms, roomID)
	client.mu.Unlock()

	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
}

// SendToUser доставляет событие во все соединения пользователя.
func (h *Hub) SendToUser(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.userClients[userID]; ok {
		for _, client := range clients {
			select {
			case client.Send <- payload:
			default:
				logrus.WithField("client_id", client.ID).Warn("Client send channel full, dropping")
			}
		}
	}
}

func (h *Hub) broadcastToRoom(roomID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	// Независимая отправка каждому подписчику: отказ или переполненный
	// буфер одного соединения не задерживает и не валит остальных
	for _, client := range room {
		select {
		case client.Send <- payload:
		default:
			logrus.WithField("client_id", client.ID).Warn("Client send channel full, dropping")
		}
	}
}

// IsUserOnline сообщает, есть ли у пользователя живое соединение.
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.userClients[userID]
	return ok
}

// RoomSubscribers возвращает число соединений, подписанных на комнату.
func (h *Hub) RoomSubscribers(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ev := Event{
		Type:      TypePing,
		Timestamp: time.Now(),
	}

	if data, err := json.Marshal(ev); err == nil {
		for _, client := range h.clients {
			select {
			case client.Send <- data:
			default:
			}
		}
	}
}
