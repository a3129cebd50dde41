package res

// AboutContent contains the Markdown content for the About dialog.
// This is maintained separately for easy updates.
const AboutContent = `An audio-reactive music visualizer built with Go and Fyne.

**Features:**
- Radial frequency bars around a rotating emblem
- Ambient dust that speeds up with the music
- Title and author from the track tags, cover art as the emblem
- Export to 1920x1080 video with the original audio (requires ffmpeg)
`
