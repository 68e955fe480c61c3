package sink

// Version stamps the version-marker procedure so a newer sink release can
// detect and replace stale server-side scripts.
const Version = "1.1.0"
