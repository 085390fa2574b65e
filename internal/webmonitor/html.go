package webmonitor

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Posture Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: sans-serif; background: #111; color: #eee; margin: 0; }
        .app { max-width: 720px; margin: 0 auto; padding: 16px; }
        .status { font-size: 2.4em; padding: 24px; border-radius: 8px; text-align: center; background: #808080; }
        .status.good { background: #00aa00; }
        .status.bad { background: #d21e1e; }
        .status.warn { background: #ff8c00; }
        .row { display: flex; gap: 12px; margin-top: 12px; }
        .cell { flex: 1; background: #222; padding: 12px; border-radius: 6px; }
        .label { font-size: 0.8em; color: #999; }
        .pad { display: grid; grid-template-columns: 1fr 1fr; gap: 4px; }
        .pad div { height: 36px; background: #333; }
        img { width: 100%; margin-top: 12px; border-radius: 6px; }
        .transport { font-size: 0.8em; color: #999; margin-top: 8px; }
    </style>
</head>
<body>
    <div class="app">
        <div class="status" id="posture">Waiting for data...</div>
        <div class="row">
            <div class="cell"><div class="label">Sitting</div><div id="sit-time">0s</div></div>
            <div class="cell"><div class="label">Session</div><div id="session">-</div></div>
            <div class="cell">
                <div class="label">Pressure</div>
                <div class="pad" id="pad"><div></div><div></div><div></div><div></div></div>
            </div>
        </div>
        <img id="card" alt="Status card" src="/stream">
        <div class="transport">Transport: <span id="transport">connecting</span></div>
    </div>

    <script>
        const postureEl = document.getElementById('posture');
        const sitEl = document.getElementById('sit-time');
        const sessionEl = document.getElementById('session');
        const padCells = document.querySelectorAll('#pad div');
        const transportEl = document.getElementById('transport');

        function statusClass(text) {
            if (text.startsWith('Good')) return 'good';
            if (text.startsWith('Hunchback') || text === 'Time to Stand up!') return 'bad';
            if (text === 'Neck Forward') return 'warn';
            return '';
        }

        function formatSit(sec) {
            if (sec < 60) return sec + 's';
            const s = sec % 60;
            return Math.floor(sec / 60) + 'm' + (s < 10 ? '0' : '') + s + 's';
        }

        function render(p) {
            postureEl.textContent = p.posture_text;
            postureEl.className = 'status ' + statusClass(p.posture_text);
            sitEl.textContent = formatSit(p.sit_time);
            p.pressure_data.forEach((v, i) => {
                padCells[i].style.background = 'rgba(0, 170, 255, ' + (v * 2) + ')';
            });
        }

        async function refreshSession() {
            try {
                const res = await fetch('/api/status');
                const status = await res.json();
                sessionEl.textContent = status.session.session_id ? status.session.session_id.slice(0, 8) : '-';
            } catch (e) {
                sessionEl.textContent = '-';
            }
        }
        setInterval(refreshSession, 2000);
        refreshSession();

        // Prefer the WebRTC data channel, fall back to the WebSocket feed.
        async function connectWebRTC() {
            const pc = new RTCPeerConnection({iceServers: [{urls: 'stun:stun.l.google.com:19302'}]});
            const channel = pc.createDataChannel('posture', {negotiated: true, id: 0, ordered: false, maxRetransmits: 0});
            channel.onmessage = (ev) => render(JSON.parse(ev.data));
            channel.onopen = () => { transportEl.textContent = 'webrtc'; };

            const offer = await pc.createOffer();
            await pc.setLocalDescription(offer);
            await new Promise((resolve) => {
                if (pc.iceGatheringState === 'complete') return resolve();
                pc.addEventListener('icegatheringstatechange', () => {
                    if (pc.iceGatheringState === 'complete') resolve();
                });
            });

            const res = await fetch('/api/webrtc/offer', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify(pc.localDescription),
            });
            if (!res.ok) throw new Error('offer rejected: ' + res.status);
            await pc.setRemoteDescription(await res.json());

            pc.onconnectionstatechange = () => {
                if (['failed', 'disconnected', 'closed'].includes(pc.connectionState)) {
                    pc.close();
                    connectWebSocket();
                }
            };
        }

        function connectWebSocket() {
            const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            const ws = new WebSocket(proto + '//' + location.host + '/ws');
            ws.onopen = () => { transportEl.textContent = 'websocket'; };
            ws.onmessage = (ev) => {
                const msg = JSON.parse(ev.data);
                if (msg.event === 'server_update') render(msg.data);
            };
            ws.onclose = () => {
                transportEl.textContent = 'reconnecting';
                setTimeout(connectWebSocket, 2000);
            };
        }

        connectWebRTC().catch(() => connectWebSocket());
    </script>
</body>
</html>
`
