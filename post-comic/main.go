package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/mlafeldt/xkcd-wall/config"
	"github.com/mlafeldt/xkcd-wall/poster"
)

// Input is the input passed to the Lambda function.
type Input struct {
	Num int `json:"num"`
}

// Output is the output returned by the Lambda function.
type Output struct {
	Num    int    `json:"num"`
	Title  string `json:"title"`
	PostID int64  `json:"post_id"`
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, input Input) (*Output, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// Only /tmp is writable inside Lambda.
	if os.Getenv("WORK_DIR") == "" {
		cfg.WorkDir = "/tmp/xkcd-wall"
	}
	cfg.LogFormat = "json"

	log := cfg.Logger(os.Stdout)
	log.Debug().Object("config", cfg).Msg("Loaded configuration")

	p, err := poster.New(cfg, log)
	if err != nil {
		return nil, err
	}
	p.Num = input.Num

	res, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}

	return &Output{
		Num:    res.Comic.Num,
		Title:  res.Comic.Title,
		PostID: res.PostID,
	}, nil
}
