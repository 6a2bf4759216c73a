package repository

const (
	createVideosTableQuery = `CREATE TABLE IF NOT EXISTS videos (
					video_id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(80) NOT NULL,
					url VARCHAR(200) NOT NULL,
					original_name VARCHAR(200) NOT NULL,
					created_at TIMESTAMP NOT NULL)`
	createVideoQuery = `INSERT INTO videos (video_id, name, url, original_name, created_at)
					VALUES (?, ?, ?, ?, ?)`
	// getVideosQuery takes an ORDER BY clause from orderClauses.
	getVideosQuery = `SELECT video_id, name, url, original_name, created_at FROM videos
					ORDER BY %s LIMIT ? OFFSET ?`
	getVideoByIDQuery = `SELECT video_id, name, url, original_name, created_at FROM videos
					WHERE video_id = ?`
	getTotalVideosQuery = `SELECT COUNT(video_id) FROM videos`
)

var orderClauses = map[string]string{
	"":            "created_at, video_id",
	"created_at":  "created_at, video_id",
	"-created_at": "created_at DESC, video_id DESC",
	"name":        "name, video_id",
	"-name":       "name DESC, video_id DESC",
}
