package gui

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>NetworkMonitor</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; background: #111; color: #ddd; }
h1 { font-size: 1.3rem; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { text-align: left; padding: 0.4rem 0.7rem; border-bottom: 1px solid #333; }
.online { color: #6c6; }
.offline { color: #888; }
.important { color: #fc6; }
button, a.button { background: #2b6; color: #fff; border: none; padding: 0.4rem 0.9rem;
  border-radius: 4px; cursor: pointer; text-decoration: none; margin-right: 0.5rem; }
#status { margin-left: 1rem; color: #888; }
</style>
</head>
<body>
<h1>NetworkMonitor</h1>
<div>
  <button id="scan">Scan now</button>
  <a class="button" href="/export.csv">Export CSV</a>
  <a class="button" href="/export.json">Export JSON</a>
  <span id="status"></span>
</div>
<table>
  <thead><tr>
    <th>Name</th><th>IP</th><th>MAC</th><th>Vendor</th><th>Type</th>
    <th>Status</th><th>Last seen</th><th></th>
  </tr></thead>
  <tbody id="devices"></tbody>
</table>
<script>
const tbody = document.getElementById('devices');
const status = document.getElementById('status');
function esc(s) { const d = document.createElement('span'); d.textContent = s || ''; return d.innerHTML; }
function render(snapshot) {
  status.textContent = snapshot.scanning ? 'scanning…' : '';
  tbody.innerHTML = (snapshot.devices || []).map(d => '<tr>' +
    '<td>' + esc(d.name) + '</td>' +
    '<td>' + esc(d.ipAddress) + '</td>' +
    '<td>' + esc(d.macAddress) + '</td>' +
    '<td>' + esc(d.vendor || '') + '</td>' +
    '<td>' + esc(d.type) + '</td>' +
    '<td class="' + (d.isOnline ? 'online' : 'offline') + '">' +
      (d.isOnline ? 'Online' : 'Offline') + '</td>' +
    '<td>' + esc(d.lastSeen) + '</td>' +
    '<td>' + (d.isImportant ? '<span class="important">&#9733;</span>' : '') + '</td>' +
    '</tr>').join('');
}
document.getElementById('scan').onclick = () => fetch('/scan', {method: 'POST'});
const source = new EventSource('/events');
source.onmessage = ev => render(JSON.parse(ev.data));
fetch('/devices').then(r => r.json()).then(devices => render({devices}));
</script>
</body>
</html>
`
