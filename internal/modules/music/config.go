package music

// Config holds the music module configuration, loaded from the environment.
type Config struct {
	YoutubeAPIKey    string `env:"YOUTUBE_API_KEY,notEmpty"`
	LavalinkAddress  string `env:"LAVALINK_ADDRESS,notEmpty"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD,notEmpty"`
}
