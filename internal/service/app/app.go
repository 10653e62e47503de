package app

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"pairchat/internal/model"
	"pairchat/internal/utils/log"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const historySize = 50

type (
	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		api      *APIClient
		self     model.PartyID
		other    model.PartyID
		threadID model.ThreadID

		conn *websocket.Conn
	}
)

func NewApp(api *APIClient, self model.PartyID) *App {
	return &App{
		app:  tview.NewApplication(),
		api:  api,
		self: self,
	}
}

// Run opens the thread with other, shows its recent history and blocks in
// the UI until the user quits.
func (c *App) Run(ctx context.Context, other model.PartyID) error {
	c.other = other

	id, err := c.api.OpenThread(ctx, other)
	if err != nil {
		return fmt.Errorf("open thread: %w", err)
	}
	c.threadID = id

	page, err := c.api.History(ctx, id, historySize, 0)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	c.conn, err = c.api.initWebhook()
	if err != nil {
		return fmt.Errorf("init webhook to server: %w", err)
	}
	defer c.conn.Close()

	c.renderUI(page.Messages)
	go c.listenOnWebhook()

	if err := c.api.MarkRead(ctx, id); err != nil {
		log.Debug("mark read failed", zap.Error(err))
	}

	return c.app.Run()
}

func (c *App) renderUI(history []model.Message) {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" Chat with %d (%s) ", c.other, c.threadID))

	// history arrives newest first
	for _, m := range slices.Backward(history) {
		c.printMessage(&m)
	}
	c.chatbox.ScrollToEnd()

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			text := c.input.GetText()
			if text == "" {
				return
			}

			go func(msg string) {
				if err := c.SendMessage(msg); err != nil {
					c.app.QueueUpdateDraw(func() {
						fmt.Fprintf(c.chatbox, "[red]send failed:[-] %s\n", tview.Escape(err.Error()))
					})
				}
			}(text)
		}
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	c.app.SetRoot(layout, true).SetFocus(c.input)
}

func (c *App) printMessage(m *model.Message) {
	who := fmt.Sprintf("[green]%d:[-]", m.SenderID)
	if m.SenderID == c.self {
		who = "[yellow]You:[-]"
	}
	content := tview.Escape(m.Content)
	switch {
	case m.Deleted:
		content = "[gray](deleted)[-]"
	case m.Edited:
		content += " [gray](edited)[-]"
	}
	if m.CreatedAt.IsZero() {
		fmt.Fprintf(c.chatbox, "%s %s\n", who, content)
		return
	}
	fmt.Fprintf(c.chatbox, "%s %s %s\n", m.CreatedAt.Local().Format(time.Kitchen), who, content)
}

func (c *App) listenOnWebhook() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug("web socket closed", zap.Error(err))
			return
		}

		var ev model.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Error("Unmarshal event failed", zap.Error(err))
			continue
		}
		c.ReceiveEvent(&ev)
	}
}

func (c *App) SendMessage(msg string) error {
	sent, err := c.api.Send(context.Background(), c.threadID, msg)
	if err != nil {
		return err
	}

	c.app.QueueUpdateDraw(func() {
		c.printMessage(sent)
		c.input.SetText("")
		c.chatbox.ScrollToEnd()
	})
	return nil
}

// ReceiveEvent renders an event for the open thread and ignores the rest.
func (c *App) ReceiveEvent(ev *model.Event) {
	if ev.ThreadID != c.threadID {
		return
	}

	switch ev.Type {
	case model.EventNewMessage, model.EventMessageEdited, model.EventMessageDeleted:
		if ev.MessageID == "" {
			return
		}
		go c.fetchAndPrint(ev)
	case model.EventMessagesRead:
		c.app.QueueUpdateDraw(func() {
			fmt.Fprintf(c.chatbox, "[gray]%d read your messages[-]\n", ev.From)
		})
	}
}

// fetchAndPrint reads the message an event names back from the server,
// since events never carry content.
func (c *App) fetchAndPrint(ev *model.Event) {
	ctx := context.Background()
	page, err := c.api.History(ctx, c.threadID, historySize, 0)
	if err != nil {
		log.Debug("fetch message failed", zap.String("message_id", ev.MessageID), zap.Error(err))
		return
	}

	var found *model.Message
	for i := range page.Messages {
		if page.Messages[i].MessageID == ev.MessageID {
			found = &page.Messages[i]
			break
		}
	}
	if found == nil {
		return
	}

	c.app.QueueUpdateDraw(func() {
		c.printMessage(found)
		c.chatbox.ScrollToEnd()
	})
	if ev.Type == model.EventNewMessage {
		if err := c.api.MarkRead(ctx, c.threadID); err != nil {
			log.Debug("mark read failed", zap.Error(err))
		}
	}
}
