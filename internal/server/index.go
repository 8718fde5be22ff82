package server

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>ImprovLab</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.min.css">
</head>
<body>
    <main class="container">
        <h1>ImprovLab</h1>
        <article>
            <header id="status">IDLE</header>
            <h2 id="chord">-</h2>
            <p id="outline"></p>
            <footer>Coming up next: <strong id="upcoming"></strong></footer>
        </article>
        <p id="message"></p>
        <div role="group">
            <button onclick="post('/start')">Start</button>
            <button class="secondary" onclick="post('/stop')">Stop</button>
        </div>
        <div role="group">
            <button class="outline" onclick="post('/settings', 'bars_per_chord=4')">4 bars</button>
            <button class="outline" onclick="post('/settings', 'bars_per_chord=8')">8 bars</button>
            <button class="outline" onclick="post('/settings', 'bars_per_chord=16')">16 bars</button>
        </div>
    </main>
    <script>
        async function post(path, body) {
            const res = await fetch(path, {
                method: 'POST',
                headers: {'Content-Type': 'application/x-www-form-urlencoded'},
                body: body || ''
            });
            const data = await res.json();
            document.getElementById('message').textContent = data.error || data.message || '';
            refresh();
        }
        async function refresh() {
            const s = await (await fetch('/status')).json();
            document.getElementById('status').textContent = s.status + ' - ' + s.bars_per_chord + ' bars';
            document.getElementById('chord').textContent = s.chord || '-';
            document.getElementById('outline').textContent = s.outline || '';
            document.getElementById('upcoming').textContent = s.upcoming || '';
            if (s.message) document.getElementById('message').textContent = s.message;
        }
        refresh();
        setInterval(refresh, 500);
    </script>
</body>
</html>`
