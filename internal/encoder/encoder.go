// Package encoder pipes rendered frames into ffmpeg as raw RGBA video.
package encoder

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"

	"github.com/bpeel/flootay-sub000/internal/system"
)

// FrameFunc produces the image for one frame number.
type FrameFunc func(ctx context.Context, frameNum int) (image.Image, error)

type Params struct {
	Width, Height int
	FPS           float64
	EncoderName   string
	Quality       int
}

type VideoEncoder interface {
	Encode(ctx context.Context, params Params, outputPath string, nFrames int, frame FrameFunc) error
}

type FFmpegEncoder struct{}

// Encode runs one ffmpeg process for the whole video and streams every
// frame to its stdin.
func (e *FFmpegEncoder) Encode(
	ctx context.Context,
	params Params,
	outputPath string,
	nFrames int,
	frame FrameFunc,
) error {
	args := e.buildFFmpegArgs(params, outputPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	for i := 0; i < nFrames; i++ {
		img, err := frame(ctx, i)
		if err != nil {
			stdin.Close()
			cmd.Wait()
			return fmt.Errorf("frame %d render error: %w", i, err)
		}

		if err := e.writeRawRGBA(stdin, img); err != nil {
			stdin.Close()
			cmd.Wait()
			return fmt.Errorf("frame %d write error: %w", i, err)
		}
	}

	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w", err)
	}

	return nil
}

func (e *FFmpegEncoder) buildFFmpegArgs(params Params, outputPath string) []string {
	// Only VP9 keeps the overlay's alpha channel. The H.264 encoders
	// flatten it onto black.
	pixFmt := "yuv420p"
	if params.EncoderName == "libvpx-vp9" {
		pixFmt = "yuva420p"
	}

	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"-framerate", fmt.Sprintf("%f", params.FPS),
		"-i", "-",
		"-pix_fmt", pixFmt,
		"-c:v", params.EncoderName,
	}

	switch params.EncoderName {
	case "h264_videotoolbox":
		args = append(args, "-b:v",
			fmt.Sprintf("%dk", params.Quality*100))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", params.Quality))
	case "libvpx-vp9":
		args = append(args, "-crf", fmt.Sprintf("%d", params.Quality),
			"-b:v", "0")
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", params.Quality),
			"-preset", "medium")
	}

	args = append(args, outputPath)
	return args
}

func (e *FFmpegEncoder) writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		converted := system.GetImage(bounds)
		draw.Draw(converted, bounds, img, bounds.Min, draw.Src)
		_, err := w.Write(converted.Pix)
		system.PutImage(converted)
		return err
	}
	_, err := w.Write(rgba.Pix)
	return err
}
