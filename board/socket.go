package board

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// socketConn adapts a socket.io socket to the engine's Conn. All
// board traffic rides the plain "message" event, mirroring the wire
// protocol the board clients speak.
type socketConn struct {
	socket *socketio.Socket
}

func (c socketConn) ID() string {
	return string(c.socket.Id())
}

func (c socketConn) Send(msg Message) error {
	return c.socket.Emit("message", msg)
}

// SetupSocketIO builds the socket.io server and wires every
// connection's message and disconnect events into the dispatcher.
func SetupSocketIO(dispatcher *Dispatcher) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		conn := socketConn{socket: socket}
		logrus.WithField("sid", conn.ID()).Debug("Connection established")

		socket.On("message", func(datas ...any) {
			if len(datas) == 0 {
				return
			}
			dispatcher.HandleMessage(context.Background(), conn, datas[0])
		})

		socket.On("disconnect", func(...any) {
			dispatcher.Disconnect(conn)
		})
	})

	return srv
}
