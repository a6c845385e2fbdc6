package server

import (
	"fmt"
	"net/http"
)

// TestPageHandler serves an HTML page for trying the WebSocket protocol by hand.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPageHTML)
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>PairChat WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"] { width: 300px; padding: 5px; margin: 2px 10px 2px 0; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>PairChat WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="token" placeholder="Access token (optional)">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div>
        <input type="text" id="userId" placeholder="Your user id">
        <button onclick="registerUser()">Register</button>
    </div>
    <div>
        <input type="text" id="receiverId" placeholder="Receiver user id">
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>
    <div>
        <input type="text" id="messageId" placeholder="Message id">
        <button onclick="deleteMessage()">Delete</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const statusDiv = document.getElementById('status');
        const connectButton = document.getElementById('connectButton');
        const val = (id) => document.getElementById(id).value.trim();

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.color = color || 'gray';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function emit(type, data) {
            if (!ws || ws.readyState !== WebSocket.OPEN) {
                addLine('not connected');
                return;
            }
            ws.send(JSON.stringify({ type: type, data: data }));
            addLine('> ' + type + ' ' + JSON.stringify(data), 'blue');
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            const token = val('token');
            ws = new WebSocket(scheme + location.host + '/ws' + (token ? '?token=' + encodeURIComponent(token) : ''));
            ws.onopen = () => { addLine('connected'); updateStatus(true); };
            ws.onmessage = (event) => addLine('< ' + event.data, 'green');
            ws.onclose = () => { addLine('connection closed'); updateStatus(false); ws = null; };
            ws.onerror = () => addLine('connection error', 'red');
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function registerUser() { emit('registerUser', { userId: val('userId') }); }
        function sendMessage() {
            emit('sendMessage', { receiverId: val('receiverId'), message: val('messageInput') });
            document.getElementById('messageInput').value = '';
        }
        function deleteMessage() { emit('deleteMessage', { messageId: Number(val('messageId')) }); }

        let typingTimer = null;
        document.getElementById('messageInput').addEventListener('input', function () {
            if (!val('receiverId')) return;
            if (!typingTimer) emit('typing', { receiverId: val('receiverId') });
            clearTimeout(typingTimer);
            typingTimer = setTimeout(function () {
                emit('stopTyping', { receiverId: val('receiverId') });
                typingTimer = null;
            }, 1500);
        });
        document.getElementById('messageInput').addEventListener('keypress', function (e) {
            if (e.key === 'Enter') sendMessage();
        });
    </script>
</body>
</html>`
